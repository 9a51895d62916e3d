// Package service implements the adaptive routing layer: complexity
// classification, circuit breaking with cached health probes, the
// history-based decision engine, outcome aggregation, fallback generation
// and the orchestrator that wires them together.
package service

import (
	"strings"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
)

// simplePatterns force ComplexitySimple when the query starts with or
// contains one of these shapes. Portuguese first; English kept for the
// mixed-language corpus the assistant sees in practice.
var simplePatterns = []string{
	"quantos ",
	"quantas ",
	"how many ",
	"listar tod",
	"liste tod",
	"list all ",
	"qual o status",
	"qual a situação",
	"status do ",
	"status da ",
	"status de ",
	"status of ",
}

// complexityIndicators is the fixed vocabulary of join-like,
// aggregation-like and comparison-like phrases. Two or more distinct hits
// make a query Complex, exactly one makes it Medium.
var complexityIndicators = []string{
	// joins / relationships
	"por projeto",
	"por contrato",
	"por fornecedor",
	"relacionado",
	"junto com",
	"join",
	// aggregations
	"média",
	"media",
	"total",
	"soma",
	"agrupado",
	"group by",
	"average",
	"sum of",
	// comparisons / ranges
	"maior que",
	"menor que",
	"acima de",
	"abaixo de",
	"entre",
	"comparar",
	"compare",
	"greater than",
	"less than",
	"between",
	// trends
	"tendência",
	"tendencia",
	"evolução",
	"evolucao",
	"trend",
}

// Classify buckets a natural-language query by structural complexity.
// Deterministic, side-effect-free: fixed simple patterns win, then the
// indicator count, then a plain word-count threshold.
func Classify(query string) domain.ComplexityClass {
	q := strings.ToLower(strings.TrimSpace(query))

	for _, p := range simplePatterns {
		if strings.Contains(q, p) {
			return domain.ComplexitySimple
		}
	}

	indicators := 0
	for _, ind := range complexityIndicators {
		if strings.Contains(q, ind) {
			indicators++
		}
	}
	switch {
	case indicators >= 2:
		return domain.ComplexityComplex
	case indicators == 1:
		return domain.ComplexityMedium
	}

	if len(strings.Fields(q)) > 5 {
		return domain.ComplexityMedium
	}
	return domain.ComplexitySimple
}
