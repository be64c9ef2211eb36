package enrich

import (
	"context"
	"sort"
	"strings"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// MaxEntities is how many entity names are kept per article.
	MaxEntities = 5
	// MinSalience filters out incidental entities.
	MinSalience = 0.01
	// EntityTypeOther is the catch-all type that is never kept.
	EntityTypeOther = "OTHER"
)

// Entity is a named thing found in article text.
type Entity struct {
	Name     string
	Type     string
	Salience float64
}

type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (store.Sentiment, error)
}

type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)
}

type ImageLabeler interface {
	LabelImage(ctx context.Context, imageURL string) ([]string, error)
}

// Result is the outcome of one analyzer call: a value, or absent with the
// reason it is absent.
type Result[T any] struct {
	Value T
	Err   error
}

func (r Result[T]) Present() bool { return r.Err == nil }

func call[T any](ctx context.Context, limiter *rate.Limiter, fn func(context.Context) (T, error)) Result[T] {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return Result[T]{Err: err}
		}
	}
	v, err := fn(ctx)
	return Result[T]{Value: v, Err: err}
}

// Config tunes the stage.
type Config struct {
	Concurrency int
	// RequestsPerSecond paces analyzer calls across all workers; zero
	// disables pacing.
	RequestsPerSecond float64
}

// Stage annotates articles with sentiment, entities and image labels. It
// never fails: each analyzer failure only leaves its own field empty. Any
// analyzer may be nil.
type Stage struct {
	sentiment SentimentAnalyzer
	entities  EntityExtractor
	images    ImageLabeler
	limiter   *rate.Limiter
	workers   int
	log       *zap.Logger
}

func NewStage(s SentimentAnalyzer, e EntityExtractor, i ImageLabeler, cfg Config, log *zap.Logger) *Stage {
	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 4
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return &Stage{
		sentiment: s,
		entities:  e,
		images:    i,
		limiter:   limiter,
		workers:   workers,
		log:       log.Named("enrich"),
	}
}

// Enabled reports whether any analyzer is configured.
func (s *Stage) Enabled() bool {
	return s != nil && (s.sentiment != nil || s.entities != nil || s.images != nil)
}

// EnrichAll enriches articles in parallel and returns them in input order.
func (s *Stage) EnrichAll(ctx context.Context, articles []store.Article) []store.Article {
	if !s.Enabled() || len(articles) == 0 {
		return articles
	}
	out := make([]store.Article, len(articles))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range articles {
		g.Go(func() error {
			out[i] = s.Enrich(ctx, articles[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Enrich annotates a single article.
func (s *Stage) Enrich(ctx context.Context, a store.Article) store.Article {
	a.Sentiment, a.Entities, a.ImageLabels = nil, nil, nil

	text := documentText(a)
	if text != "" && s.sentiment != nil {
		res := call(ctx, s.limiter, func(ctx context.Context) (store.Sentiment, error) {
			return s.sentiment.AnalyzeSentiment(ctx, text)
		})
		if res.Present() {
			v := res.Value
			a.Sentiment = &v
		} else {
			s.warn("sentiment", a, res.Err)
		}
	}

	if text != "" && s.entities != nil {
		res := call(ctx, s.limiter, func(ctx context.Context) ([]Entity, error) {
			return s.entities.ExtractEntities(ctx, text)
		})
		if res.Present() {
			a.Entities = TopEntities(res.Value)
		} else {
			s.warn("entities", a, res.Err)
		}
	}

	if a.ImageURL != "" && s.images != nil {
		res := call(ctx, s.limiter, func(ctx context.Context) ([]string, error) {
			return s.images.LabelImage(ctx, a.ImageURL)
		})
		if res.Present() {
			a.ImageLabels = res.Value
		} else {
			s.warn("image labels", a, res.Err)
		}
	}
	return a
}

func (s *Stage) warn(what string, a store.Article, err error) {
	s.log.Warn("analyzer failed, field left empty",
		zap.String("analyzer", what),
		zap.String("url", a.URL),
		zap.Error(err))
}

// documentText is "{title}. {description}", or empty when both are empty.
func documentText(a store.Article) string {
	title := strings.TrimSpace(a.Title)
	desc := strings.TrimSpace(a.Description)
	if title == "" && desc == "" {
		return ""
	}
	return title + ". " + desc
}

// TopEntities drops OTHER and low-salience entities, ranks the rest by
// salience and keeps the names of the top MaxEntities.
func TopEntities(entities []Entity) []string {
	kept := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if strings.EqualFold(e.Type, EntityTypeOther) || e.Salience <= MinSalience || e.Name == "" {
			continue
		}
		kept = append(kept, e)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Salience > kept[j].Salience })
	if len(kept) > MaxEntities {
		kept = kept[:MaxEntities]
	}
	names := make([]string, len(kept))
	for i, e := range kept {
		names[i] = e.Name
	}
	return names
}
