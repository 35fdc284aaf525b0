package retrieval

import (
	"context"
	"regexp"
	"strings"

	"github.com/brunobiangulo/fiscalis/router"
	"github.com/brunobiangulo/fiscalis/store"
)

// defaultTopK is the evidence count returned by a satisfied hybrid pass,
// absent an explicit override.
const defaultTopK = 8

// Embedder produces a query embedding for a question. No type in the llm
// package satisfies it (llm.Provider.Embed takes a batch of texts), and
// Orchestrator does not use it: the caller embeds the question and passes
// the vector in.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Orchestrator implements the Fallback Orchestrator (§4.G).
type Orchestrator struct {
	store *store.Store
	topK  int
}

// New builds an Orchestrator backed by s. topK <= 0 uses defaultTopK.
func New(s *store.Store, topK int) *Orchestrator {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Orchestrator{store: s, topK: topK}
}

var (
	reglaRe          = regexp.MustCompile(`(?i)\bregla\s+(\d{1,3}(?:\.\d{1,3}){1,5})\b`)
	articleRefRe     = regexp.MustCompile(`(?i)\b(\d{1,3})(?:\s*[-–]\s*([a-zA-Z]))?\b(\s*bis)?`)
	literalIntentRe  = regexp.MustCompile(`(?i)\b(c[ií]tame|textualmente|cita literal|cita textual)\b`)
	rmfIntentRe      = regexp.MustCompile(`(?i)\b(rmf|miscel[aá]nea)\b`)
	anexoDofRe       = regexp.MustCompile(`(?i)\b(anexo|dof|diario oficial)\b`)
	compiladoRe      = regexp.MustCompile(`(?i)compilado`)
	modificacionRe   = regexp.MustCompile(`(?i)modificaci[oó]n`)
	generalDeductRe  = regexp.MustCompile(`(?i)\b(requisitos|deduccion(?:es)?|deducci[oó]n|deducible|autorizada|estrictamente indispensable|cfdi|comprobante|forma de pago|isr|lisr|impuesto sobre la renta)\b`)
)

// Result is the outcome of Run: the evidence list, the exercise year it
// was actually drawn from, and whether the orchestrator flagged a
// literal-citation bypass (§4.I Path B).
type Result struct {
	Evidence      []store.RetrievalResult
	UsedYear      int
	LiteralBypass bool
}

// Run implements the orchestrator's three-step contract (§4.G): rule
// shortcut, article shortcut, then hybrid search with temporal fallback.
// queryVec is the caller-computed embedding of question (or its expanded
// form); keywords come from the query expander.
func (o *Orchestrator) Run(ctx context.Context, question string, fiscalYear int, queryVec []float32, keywords []string) (Result, error) {
	lower := strings.ToLower(question)

	// Step 1 — rule shortcut.
	if m := reglaRe.FindStringSubmatch(question); m != nil {
		ruleID := m[1]
		chunks, err := o.store.LookupRMFRule(ctx, fiscalYear, ruleID, "", 50)
		if err != nil {
			return Result{}, err
		}
		if len(chunks) > 0 {
			return Result{
				Evidence:      chunks,
				UsedYear:      fiscalYear,
				LiteralBypass: literalIntentRe.MatchString(lower),
			}, nil
		}
	}

	// Step 2 — article shortcut. Only attempted when the question isn't
	// also a rule reference, matching the original's mutually exclusive
	// fast paths.
	if !strings.Contains(lower, "regla") {
		if m := articleRefRe.FindStringSubmatch(question); m != nil {
			token := strings.ToUpper(m[1])
			if m[2] != "" {
				token += "-" + strings.ToUpper(m[2])
			}
			wantsBis := strings.TrimSpace(m[3]) != ""

			for _, docID := range router.Resolve(question) {
				chunks, err := o.store.LookupArticle(ctx, docID, token, wantsBis)
				if err != nil {
					return Result{}, err
				}
				if len(chunks) > 0 {
					return Result{
						Evidence:      chunks,
						UsedYear:      0,
						LiteralBypass: literalIntentRe.MatchString(lower),
					}, nil
				}
			}
		}
	}

	// Step 3 — hybrid search with temporal fallback.
	wantsRMF := rmfIntentRe.MatchString(lower)
	generalDeductions := generalDeductRe.MatchString(lower)
	excludeAnexo := ""
	if !anexoDofRe.MatchString(lower) {
		excludeAnexo = "anexo"
	}

	var preferFirst, preferSecond, preferGeneric string
	switch {
	case generalDeductions:
		preferFirst, preferSecond = "ley", "rmf"
	case wantsRMF:
		preferFirst = "rmf"
	}
	if wantsRMF {
		preferGeneric = "rmf"
	}

	years := yearChain(fiscalYear)

	for _, year := range years {
		filterBase := store.YearFilter{Year: year, IncludeEvergreen: true, IncludeNullYear: true, ExcludeDocType: excludeAnexo}

		passes := []store.YearFilter{}
		if preferFirst != "" {
			f := filterBase
			f.PreferDocType = preferFirst
			passes = append(passes, f)
		}
		if preferSecond != "" {
			f := filterBase
			f.PreferDocType = preferSecond
			passes = append(passes, f)
		}
		generic := filterBase
		generic.PreferDocType = preferGeneric
		passes = append(passes, generic)
		passes = append(passes, store.YearFilter{Year: year, IncludeEvergreen: true, IncludeNullYear: true})

		for _, filter := range passes {
			vecResults, err := o.store.VectorSearch(ctx, queryVec, nil, filter, o.topK)
			if err != nil {
				return Result{}, err
			}
			kwResults, err := o.store.KeywordSearch(ctx, keywords, nil, filter, o.topK)
			if err != nil {
				return Result{}, err
			}
			merged := Merge(vecResults, kwResults, o.topK)
			if len(merged) > 0 {
				return Result{Evidence: robustnessFilter(merged), UsedYear: year}, nil
			}
		}
	}

	return Result{Evidence: nil, UsedYear: fiscalYear}, nil
}

// yearChain builds the candidate-year chain (§4.G step 3).
func yearChain(fiscalYear int) []int {
	if fiscalYear == 2025 || fiscalYear == 2026 {
		return []int{fiscalYear, 2024, 2023, 2022}
	}
	var chain []int
	for y := fiscalYear; y >= 2022; y-- {
		chain = append(chain, y)
	}
	if len(chain) == 0 {
		chain = []int{fiscalYear}
	}
	return chain
}

// robustnessFilter implements the §4.G robustness filter: compiled RMF
// editions supersede piecemeal modification decrees, so when both appear
// in a result set, prefer the compiled one.
func robustnessFilter(results []store.RetrievalResult) []store.RetrievalResult {
	var compiled, modificacion []store.RetrievalResult
	for _, r := range results {
		name := strings.ToLower(r.SourceFilename)
		if compiladoRe.MatchString(name) {
			compiled = append(compiled, r)
		} else if modificacionRe.MatchString(name) {
			modificacion = append(modificacion, r)
		}
	}
	if len(compiled) > 0 {
		return compiled
	}
	if len(modificacion) > 0 {
		return modificacion
	}
	return results
}
