// Package ingest implements the PDF-to-chunk ingestion pipeline (§4.J):
// extracting page text from statute and RMF PDFs, running the
// article-first (or rule-first) chunker, embedding the results in
// batches, and persisting them to the store.
package ingest

// ManifestEntry describes one document the "laws" pipeline knows how to
// ingest: a PDF filename under the base path, its canonical document_id,
// display title, doc_type, and (for yearly documents) exercise_year.
type ManifestEntry struct {
	Filename     string
	DocumentID   string
	Title        string
	DocType      string
	ExerciseYear int
}

// LawsBaseline is the manifest of federal statutes and regulations the
// "laws" subcommand ingests with --all. Statutes have DocType "ley" and
// regulations "reglamento"; every entry's ExerciseYear is 0 (these
// documents are not year-scoped), matching the baseline list.
var LawsBaseline = []ManifestEntry{
	{Filename: "CODIGO_FISCAL_DE_LA_FEDERACION.pdf", DocumentID: "CODIGO_FISCAL_DE_LA_FEDERACION", Title: "Código Fiscal de la Federación", DocType: "ley"},
	{Filename: "CONSTITUCION_POLITICA_ESTADOS_UNIDOS_MEXICANOS.pdf", DocumentID: "CONSTITUCION_POLITICA_ESTADOS_UNIDOS_MEXICANOS", Title: "Constitución Política de los Estados Unidos Mexicanos", DocType: "ley"},
	{Filename: "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA.pdf", DocumentID: "LEY_DEL_IMPUESTO_SOBRE_LA_RENTA", Title: "Ley del Impuesto Sobre la Renta", DocType: "ley"},
	{Filename: "LEY_DEL_IMPUESTO_VALOR_AGREGADO.pdf", DocumentID: "LEY_DEL_IMPUESTO_VALOR_AGREGADO", Title: "Ley del Impuesto al Valor Agregado", DocType: "ley"},
	{Filename: "LEY_IMPUESTO_ESPECIAL_PRODUCCION_SERVICIOS.pdf", DocumentID: "LEY_IMPUESTO_ESPECIAL_PRODUCCION_SERVICIOS", Title: "Ley del Impuesto Especial sobre Producción y Servicios", DocType: "ley"},
	{Filename: "LEY_ADUANERA.pdf", DocumentID: "LEY_ADUANERA", Title: "Ley Aduanera", DocType: "ley"},
	{Filename: "LEY_FEDERAL_IMPUESTO_SOBRE_AUTOMOVILES_NUEVOS.pdf", DocumentID: "LEY_FEDERAL_IMPUESTO_SOBRE_AUTOMOVILES_NUEVOS", Title: "Ley Federal del Impuesto sobre Automóviles Nuevos", DocType: "ley"},
	{Filename: "LEY FEDERAL DE LOS DERECHOS DEL CONTRIBUYENTE DOF 23055005.pdf", DocumentID: "LEY FEDERAL DE LOS DERECHOS DEL CONTRIBUYENTE DOF 23055005", Title: "Ley Federal de los Derechos del Contribuyente", DocType: "ley"},
	{Filename: "CONVENCION_MULTILATERAL_BEPS_(MLI)_OCDE.pdf", DocumentID: "CONVENCION_MULTILATERAL_BEPS_(MLI)_OCDE", Title: "Convención Multilateral BEPS (MLI) OCDE", DocType: "ley"},
	{Filename: "REGLAMENTO_CODIGO_FISCAL_FEDERACION.pdf", DocumentID: "REGLAMENTO_CODIGO_FISCAL_FEDERACION", Title: "Reglamento del Código Fiscal de la Federación", DocType: "reglamento"},
	{Filename: "REGLAMENTO_LEY_IMPUESTO_SOBRE_RENTA.pdf", DocumentID: "REGLAMENTO_LEY_IMPUESTO_SOBRE_RENTA", Title: "Reglamento de la Ley del Impuesto Sobre la Renta", DocType: "reglamento"},
	{Filename: "REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO.pdf", DocumentID: "REGLAMENTO_LEY_DEL_IMPUESTO_VALOR_AGREGADO", Title: "Reglamento de la Ley del IVA", DocType: "reglamento"},
	{Filename: "REGLAMENTO_LEY_ADUANERA.pdf", DocumentID: "REGLAMENTO_LEY_ADUANERA", Title: "Reglamento de la Ley Aduanera", DocType: "reglamento"},
}

// SelectManifest returns the baseline entries whose DocumentID is in ids,
// along with the subset of ids that matched nothing.
func SelectManifest(baseline []ManifestEntry, ids []string) (selected []ManifestEntry, missing []string) {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	for _, e := range baseline {
		if wanted[e.DocumentID] {
			selected = append(selected, e)
			delete(wanted, e.DocumentID)
		}
	}
	for id := range wanted {
		missing = append(missing, id)
	}
	return selected, missing
}
