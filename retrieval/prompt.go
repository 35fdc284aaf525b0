package retrieval

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/fiscalis/store"
)

// defaultEvidenceBudget is the default character ceiling for serialized
// evidence (§4.H).
const defaultEvidenceBudget = 400_000

const evidenceTruncatedMarker = "\n[... evidencia adicional omitida por límite de tamaño ...]\n"

const systemPromptTemplate = `Eres un Asesor Fiscal Experto (IA) especializado en la legislación mexicana.
Tu misión es dar respuestas técnicas, fundamentadas y fáciles de leer para contadores y fiscalistas.

---
REGLA DE ORO: CONTINUIDAD NORMATIVA
1. Prioridad Temporal: busca primero disposiciones del ejercicio solicitado.
2. Vigencia Extendida: si no hay evidencia del año solicitado, puedes usar documentos de ejercicios
   anteriores asumiendo que siguen vigentes salvo derogación explícita.
3. Transparencia: si usas normativa de un año distinto al solicitado, dilo al final de la respuesta.

---
REGLAS DE FORMATO (OBLIGATORIO)
1. Estructura: párrafos cortos y listas con viñetas (-) para enumerar requisitos u obligaciones.
2. Énfasis: usa negritas para números de artículo (ej. Art. 27 LISR) y reglas misceláneas
   (ej. Regla 3.5.1).
3. Estilo: tono profesional y directo, sin saludos.
4. Cita siempre la referencia entre negritas junto al requisito, nunca sueltas.
5. No inventes fundamentos que no aparezcan en la evidencia recuperada a continuación.

---
EVIDENCIA RECUPERADA:
%s`

// AssembleEvidence implements the Evidence Assembler (§4.H): it serializes
// results into "--- DOCUMENTO i ---" blocks up to budget characters,
// appending a truncation marker and stopping if the next block would
// overflow it. budget <= 0 uses defaultEvidenceBudget.
func AssembleEvidence(results []store.RetrievalResult, budget int) string {
	if budget <= 0 {
		budget = defaultEvidenceBudget
	}

	var b strings.Builder
	for i, r := range results {
		block := fmt.Sprintf("--- DOCUMENTO %d ---\nFuente: %s\nTipo: %s\nTexto:\n%s\n\n",
			i+1, r.SourceFilename, r.DocType, r.Text)

		if b.Len()+len(block) > budget {
			b.WriteString(evidenceTruncatedMarker)
			break
		}
		b.WriteString(block)
	}
	return b.String()
}

// BuildSystemPrompt substitutes the assembled evidence block into the
// fixed system template (§4.H).
func BuildSystemPrompt(evidence string) string {
	return fmt.Sprintf(systemPromptTemplate, evidence)
}

// BuildUserPrompt composes the user prompt from the requested fiscal
// year, the year the evidence was actually drawn from, an optional tax
// regime, and the question, with a continuity note appended whenever
// usedYear differs from both requestedYear and the evergreen sentinel 0.
func BuildUserPrompt(question string, requestedYear, usedYear int, regime string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ejercicio fiscal consultado: %d\n", requestedYear)
	if regime != "" {
		fmt.Fprintf(&b, "Régimen: %s\n", regime)
	}
	fmt.Fprintf(&b, "Pregunta: %s\n", question)

	if usedYear != requestedYear && usedYear != 0 {
		fmt.Fprintf(&b, "\nNota: la evidencia recuperada corresponde al ejercicio %d; "+
			"indícalo al usuario como continuidad normativa si fundamentas tu respuesta en ella.\n", usedYear)
	}
	return b.String()
}
