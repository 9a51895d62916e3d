package service

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/gtaquino-automatelabs/proativo-sub000/internal/domain"
	"github.com/gtaquino-automatelabs/proativo-sub000/internal/infra/observability"

	"go.uber.org/zap"
)

const maxSuggestions = 5

// emergencyMessage is the last-resort reply when even template generation
// fails. It must never be empty and never depend on runtime state.
const emergencyMessage = "Desculpe, estou com dificuldades técnicas no momento. " +
	"Por favor, tente novamente em alguns instantes."

type fallbackTemplate struct {
	message     string
	strategy    domain.FallbackStrategy
	confidence  float64
	suggestions []string
}

// fallbackTemplates keys every known trigger to its static template.
// Confidence is lowest for raw LLM errors and highest for out-of-domain
// queries, where the classification itself is informative.
var fallbackTemplates = map[domain.FallbackTrigger]fallbackTemplate{
	domain.TriggerLLMError: {
		message:    "Não consegui processar sua consulta no momento. O sistema de busca inteligente está indisponível.",
		strategy:   domain.StrategyPredefined,
		confidence: 0.3,
		suggestions: []string{
			"Tente reformular a pergunta de forma mais direta",
			"Aguarde alguns minutos e tente novamente",
		},
	},
	domain.TriggerEmptyResponse: {
		message:    "Sua consulta foi processada, mas não encontrei dados correspondentes.",
		strategy:   domain.StrategyTemplateBased,
		confidence: 0.4,
		suggestions: []string{
			"Verifique se o nome do equipamento ou projeto está correto",
			"Tente ampliar o período da consulta",
		},
	},
	domain.TriggerLowConfidence: {
		message:    "Não tenho certeza de ter entendido sua pergunta corretamente.",
		strategy:   domain.StrategyTemplateBased,
		confidence: 0.5,
		suggestions: []string{
			"Reformule usando termos como 'equipamentos', 'projetos' ou 'contratos'",
		},
	},
	domain.TriggerTimeout: {
		message:    "A consulta demorou mais que o esperado e foi interrompida.",
		strategy:   domain.StrategyPredefined,
		confidence: 0.4,
		suggestions: []string{
			"Tente uma consulta mais simples",
			"Divida a pergunta em partes menores",
		},
	},
	domain.TriggerQuotaExceeded: {
		message:    "O limite de consultas inteligentes foi atingido temporariamente.",
		strategy:   domain.StrategyPredefined,
		confidence: 0.6,
		suggestions: []string{
			"Aguarde alguns minutos antes de tentar novamente",
			"Consultas simples continuam disponíveis",
		},
	},
	domain.TriggerOutOfDomain: {
		message:    "Essa pergunta está fora do meu domínio. Posso ajudar com equipamentos, projetos, contratos e manutenções.",
		strategy:   domain.StrategyHelpSuggestions,
		confidence: 0.8,
		suggestions: []string{
			"Pergunte: 'Quantos equipamentos ativos?'",
			"Pergunte: 'Listar todos os projetos em andamento'",
		},
	},
	domain.TriggerUnsupportedQuery: {
		message:    "Ainda não sei responder esse tipo de consulta.",
		strategy:   domain.StrategyHelpSuggestions,
		confidence: 0.7,
		suggestions: []string{
			"Veja os tipos de consulta suportados na documentação",
			"Pergunte: 'Qual o status do projeto X?'",
		},
	},
}

// contextSuggestions maps query keywords to extra, more targeted hints.
var contextSuggestions = []struct {
	keyword    string
	suggestion string
}{
	{"equipamento", "Tente: 'Quantos equipamentos ativos?'"},
	{"projeto", "Tente: 'Listar todos os projetos em andamento'"},
	{"contrato", "Tente: 'Qual o status do contrato?'"},
	{"manutenç", "Tente: 'Manutenções previstas para este mês'"},
	{"fornecedor", "Tente: 'Listar todos os fornecedores'"},
	{"custo", "Tente: 'Total de custos por projeto'"},
}

// identifierPattern matches fixed-format asset/contract codes, e.g. CT-1042.
var identifierPattern = regexp.MustCompile(`\b[A-Z]{2,4}-\d{2,6}\b`)

// domainTerms is the small vocabulary used to personalize messages.
var domainTerms = []string{
	"equipamento", "equipamentos",
	"projeto", "projetos",
	"contrato", "contratos",
	"manutenção", "manutenções",
	"usina", "subestação", "transformador",
	"fornecedor", "fornecedores",
}

// FallbackGenerator produces safe, user-presentable replies when a primary
// strategy fails. Stateless per call except for the lifetime counters.
type FallbackGenerator struct {
	mu          sync.Mutex
	byTrigger   map[domain.FallbackTrigger]int64
	byStrategy  map[domain.FallbackStrategy]int64
	generated   int64
	emergencies int64

	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewFallbackGenerator creates a generator with zeroed counters.
func NewFallbackGenerator(metrics *observability.Metrics, logger *zap.Logger) *FallbackGenerator {
	return &FallbackGenerator{
		byTrigger:  make(map[domain.FallbackTrigger]int64),
		byStrategy: make(map[domain.FallbackStrategy]int64),
		metrics:    metrics,
		logger:     logger,
	}
}

// Generate builds a fallback reply for the trigger and query. It never
// panics: any internal failure degrades to the hard-coded emergency reply.
func (g *FallbackGenerator) Generate(trigger domain.FallbackTrigger, query string, qctx *domain.QueryContext) (resp domain.FallbackResponse) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("fallback generation panicked", zap.Any("panic", r))
			resp = g.emergency(trigger)
		}
	}()

	if !trigger.Known() {
		return g.emergency(trigger)
	}
	tmpl := fallbackTemplates[trigger]

	message := tmpl.message
	if ref := extractEntity(query); ref != "" {
		message = fmt.Sprintf("%s (referente a \"%s\")", message, ref)
	}

	suggestions := make([]string, 0, maxSuggestions)
	suggestions = append(suggestions, tmpl.suggestions...)
	suggestions = appendContextSuggestions(suggestions, query)
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	g.count(trigger, tmpl.strategy)

	return domain.FallbackResponse{
		Message:     message,
		Confidence:  tmpl.confidence,
		Strategy:    tmpl.strategy,
		Suggestions: suggestions,
		Trigger:     trigger,
		Actionable:  true,
	}
}

// emergency is the degraded path for unknown triggers and internal failures.
func (g *FallbackGenerator) emergency(trigger domain.FallbackTrigger) domain.FallbackResponse {
	g.mu.Lock()
	g.byTrigger[trigger]++
	g.byStrategy[domain.StrategyEmergency]++
	g.generated++
	g.emergencies++
	g.mu.Unlock()
	g.metrics.IncrFallback(trigger.String())

	return domain.FallbackResponse{
		Message:     emergencyMessage,
		Confidence:  0.1,
		Strategy:    domain.StrategyEmergency,
		Suggestions: []string{},
		Trigger:     trigger,
		Actionable:  false,
	}
}

func (g *FallbackGenerator) count(trigger domain.FallbackTrigger, strategy domain.FallbackStrategy) {
	g.mu.Lock()
	g.byTrigger[trigger]++
	g.byStrategy[strategy]++
	g.generated++
	g.mu.Unlock()
	g.metrics.IncrFallback(trigger.String())
}

// TriggerCount returns the lifetime count for one trigger.
func (g *FallbackGenerator) TriggerCount(trigger domain.FallbackTrigger) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byTrigger[trigger]
}

// Generated returns the lifetime number of fallback responses.
func (g *FallbackGenerator) Generated() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generated
}

// extractEntity pulls a fixed-format identifier or domain term from the
// query to personalize the fallback message.
func extractEntity(query string) string {
	if id := identifierPattern.FindString(query); id != "" {
		return id
	}
	q := strings.ToLower(query)
	for _, term := range domainTerms {
		if strings.Contains(q, term) {
			return term
		}
	}
	return ""
}

// appendContextSuggestions adds up to 3 keyword-matched hints, skipping
// duplicates.
func appendContextSuggestions(suggestions []string, query string) []string {
	q := strings.ToLower(query)
	added := 0
	for _, cs := range contextSuggestions {
		if added == 3 {
			break
		}
		if !strings.Contains(q, cs.keyword) {
			continue
		}
		dup := false
		for _, s := range suggestions {
			if s == cs.suggestion {
				dup = true
				break
			}
		}
		if !dup {
			suggestions = append(suggestions, cs.suggestion)
			added++
		}
	}
	return suggestions
}
