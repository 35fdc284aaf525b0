package router

import (
	"regexp"
	"strings"
)

// fiscalSynonyms maps a term to related terms used to widen keyword
// search. Ported from the fiscal-domain synonym dictionary; capped at 3
// entries per term downstream.
var fiscalSynonyms = map[string][]string{
	"límite":  {"exención", "tope", "máximo", "monto máximo", "cantidad máxima"},
	"limite":  {"exención", "tope", "máximo", "monto máximo", "cantidad máxima"},
	"tope":    {"límite", "exención", "máximo"},
	"exención": {"límite", "exento", "no gravado", "no sujeto al pago"},
	"exento":  {"exención", "no gravado", "límite"},

	"salario mínimo": {"UMA", "unidad de medida", "veces el salario", "siete veces"},
	"uma":            {"salario mínimo", "unidad de medida y actualización"},
	"veces":          {"salario mínimo", "UMA", "siete veces", "equivalente"},

	"deducción": {"deducible", "deducir", "gasto deducible"},
	"deducir":   {"deducción", "deducible"},
	"deducible": {"deducción", "requisitos de deducción"},

	"previsión social": {"prestaciones", "beneficios trabajadores", "seguridad social"},
	"prestaciones":      {"previsión social", "beneficios"},

	"requisitos": {"condiciones", "requisito", "cumplir", "obligaciones"},
	"requisito":  {"requisitos", "condiciones"},

	"fracción xi": {"fracción 11", "once"},
	"fracción 11": {"fracción XI", "once"},

	"persona moral":  {"empresa", "sociedad", "contribuyente persona moral"},
	"persona física": {"individuo", "contribuyente persona física"},

	"ingreso acumulable": {"ingreso gravable", "base gravable"},
	"ingreso exento":     {"exención", "no acumulable"},
}

type expansionPattern struct {
	pattern    *regexp.Regexp
	expansions []string
}

// expansionPatterns maps whole-question regex triggers to expansion
// phrase sets.
var expansionPatterns = []expansionPattern{
	{
		regexp.MustCompile(`(?i)(límite|limite|tope|máximo).*(deducción|deducir|exención|exento|previsión)`),
		[]string{"siete veces el salario mínimo", "salario mínimo general", "UMA",
			"cantidad equivalente", "monto de la exención", "ingreso no sujeto"},
	},
	{
		regexp.MustCompile(`(?i)(cuánto|cuanto|cuántos|cuantos).*(deducir|exento|exención|límite)`),
		[]string{"veces el salario", "salario mínimo", "UMA", "monto máximo", "cantidad"},
	},
	{
		regexp.MustCompile(`(?i)(porcentaje|%|por ciento).*(deducción|deducible|límite)`),
		[]string{"proporción", "fracción", "parte", "monto"},
	},
}

// Expansion is the result of ExpandQuery (§4.D).
type Expansion struct {
	ExpandedQuery string
	Keywords      []string
}

// ExpandQuery implements the Query Expander (§4.D). It is advisory:
// retrieval still succeeds with an empty Expansion.
func ExpandQuery(question string) Expansion {
	lower := strings.ToLower(question)

	var additional, keywords []string

	for term, synonyms := range fiscalSynonyms {
		if strings.Contains(lower, term) {
			additional = append(additional, capSlice(synonyms, 3)...)
			keywords = append(keywords, capSlice(synonyms, 2)...)
		}
	}

	for _, ep := range expansionPatterns {
		if ep.pattern.MatchString(lower) {
			additional = append(additional, ep.expansions...)
			keywords = append(keywords, capSlice(ep.expansions, 3)...)
		}
	}

	uniqueTerms := dedupPreserveOrder(additional)

	expanded := question
	if len(uniqueTerms) > 0 {
		cap := uniqueTerms
		if len(cap) > 5 {
			cap = cap[:5]
		}
		expanded = question + " (" + strings.Join(cap, ", ") + ")"
	}

	uniqueKeywords := dedupPreserveOrder(keywords)
	if len(uniqueKeywords) > 5 {
		uniqueKeywords = uniqueKeywords[:5]
	}

	return Expansion{ExpandedQuery: expanded, Keywords: uniqueKeywords}
}

func capSlice(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func dedupPreserveOrder(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
