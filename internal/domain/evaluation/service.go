package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/cvlift/cvlift-api/internal/domain/credit"
	"github.com/cvlift/cvlift-api/internal/domain/cvfile"
	"github.com/cvlift/cvlift-api/internal/pkg/anthropic"
)

const (
	cacheKeyPrefix = "evaluation:file:"
	cacheTTL       = 24 * time.Hour

	gateMaxTokens    = 64
	groupMaxTokens   = 2048
	summaryMaxTokens = 1024
)

// Files is the slice of the file service evaluation needs.
type Files interface {
	GetOwned(ctx context.Context, userID, fileID string) (*cvfile.File, error)
	Download(ctx context.Context, f *cvfile.File) ([]byte, error)
}

// Ledger is the slice of the credit service evaluation needs.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (int, error)
	Apply(ctx context.Context, userID string, amount int, reason credit.Reason, txRef *string) error
}

// LLM is the model client behind the evaluation calls.
type LLM interface {
	GenerateJSON(ctx context.Context, req anthropic.Request, out interface{}) error
}

// Notifier pushes progress events to the user's open sockets.
type Notifier interface {
	Publish(userID string, event Event)
}

type Service struct {
	repo           Repository
	files          Files
	ledger         Ledger
	llm            LLM
	cache          *redis.Client
	notifier       Notifier
	creditsPerEval int
}

func NewService(repo Repository, files Files, ledger Ledger, llm LLM, cache *redis.Client, notifier Notifier, creditsPerEval int) *Service {
	if creditsPerEval <= 0 {
		creditsPerEval = 1
	}
	return &Service{
		repo:           repo,
		files:          files,
		ledger:         ledger,
		llm:            llm,
		cache:          cache,
		notifier:       notifier,
		creditsPerEval: creditsPerEval,
	}
}

// Evaluate runs the full workflow: ownership check, cached-result short
// circuit, credit debit, CV gate, two concurrent aspect-group calls, summary,
// persist. The debit happens before the model calls and is not refunded when
// the gate rejects the file; the model time is spent either way.
func (s *Service) Evaluate(ctx context.Context, userID string, form Form) ([]Evaluation, error) {
	f, err := s.files.GetOwned(ctx, userID, form.FileID)
	if err != nil {
		return nil, err
	}

	if !form.AnalyseAgain {
		if cached, err := s.loadResults(ctx, f.ID); err == nil && len(cached) > 0 {
			return cached, nil
		}
	} else {
		if err := s.repo.DeleteByFile(ctx, f.ID); err != nil {
			return nil, err
		}
		s.dropCache(ctx, f.ID)
	}

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance < s.creditsPerEval {
		return nil, credit.ErrInsufficientCredits
	}

	data, err := s.files.Download(ctx, f)
	if err != nil {
		return nil, err
	}
	attachment := &anthropic.Attachment{MediaType: detectMediaType(data), Data: data}

	if err := s.ledger.Apply(ctx, userID, -s.creditsPerEval, credit.ReasonFileSubmission, nil); err != nil {
		return nil, err
	}

	start := time.Now()
	s.notify(userID, Event{Type: EventStarted, FileID: f.ID})

	if err := s.gateCV(ctx, attachment); err != nil {
		s.notify(userID, Event{Type: EventFailed, FileID: f.ID})
		return nil, err
	}

	results := s.evaluateGroups(ctx, userID, f.ID, form, attachment)
	results[AspectSummary] = s.summarize(ctx, results, form)

	rows := make([]Evaluation, 0, len(results))
	for _, aspect := range append(append(append([]string{}, contentAspects...), structureAspects...), AspectSummary) {
		r := results[aspect]
		rows = append(rows, Evaluation{Aspect: aspect, Score: r.Score, Feedback: r.Feedback})
	}

	if err := s.repo.ReplaceForFile(ctx, f.ID, rows); err != nil {
		s.notify(userID, Event{Type: EventFailed, FileID: f.ID})
		return nil, err
	}
	s.storeCache(ctx, f.ID, rows)

	s.notify(userID, Event{Type: EventFinished, FileID: f.ID, Payload: rows})
	log.Info().
		Str("user_id", userID).
		Str("file_id", f.ID).
		Dur("took", time.Since(start)).
		Msg("evaluation finished")

	return rows, nil
}

// Results returns the stored evaluation for a file the user owns.
func (s *Service) Results(ctx context.Context, userID, fileID string) ([]Evaluation, error) {
	f, err := s.files.GetOwned(ctx, userID, fileID)
	if err != nil {
		return nil, err
	}

	rows, err := s.loadResults(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoResults
	}
	return rows, nil
}

func (s *Service) gateCV(ctx context.Context, attachment *anthropic.Attachment) error {
	system, prompt := isCVPrompt()
	var gate struct {
		IsCV bool `json:"is_cv"`
	}
	err := s.llm.GenerateJSON(ctx, anthropic.Request{
		System:     system,
		Prompt:     prompt,
		Attachment: attachment,
		MaxTokens:  gateMaxTokens,
	}, &gate)
	if err != nil {
		return fmt.Errorf("cv gate call: %w", err)
	}
	if !gate.IsCV {
		return ErrNotCV
	}
	return nil
}

// evaluateGroups fires one model call per aspect group and joins them. A
// failed group fills its aspects with the failure placeholder instead of
// aborting the sibling.
func (s *Service) evaluateGroups(ctx context.Context, userID, fileID string, form Form, attachment *anthropic.Attachment) map[string]aspectResult {
	groups := []struct {
		name    string
		aspects []string
	}{
		{"content", contentAspects},
		{"structure", structureAspects},
	}

	results := make(map[string]aspectResult, len(contentAspects)+len(structureAspects)+1)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, g := range groups {
		wg.Add(1)
		go func(name string, aspects []string) {
			defer wg.Done()

			system, prompt := groupPrompt(aspects, form)
			out := make(map[string]aspectResult)
			err := s.llm.GenerateJSON(ctx, anthropic.Request{
				System:     system,
				Prompt:     prompt,
				Attachment: attachment,
				MaxTokens:  groupMaxTokens,
			}, &out)
			if err != nil {
				log.Error().Err(err).Str("group", name).Str("file_id", fileID).Msg("aspect group call failed")
			}

			mu.Lock()
			for _, aspect := range aspects {
				r, ok := out[aspect]
				if err != nil || !ok {
					r = failedResult
				}
				results[aspect] = clamp(r)
			}
			mu.Unlock()

			s.notify(userID, Event{Type: EventAspectsDone, FileID: fileID, Group: name})
		}(g.name, g.aspects)
	}
	wg.Wait()

	return results
}

func (s *Service) summarize(ctx context.Context, results map[string]aspectResult, form Form) aspectResult {
	system, prompt := summaryPrompt(results, form)
	var sum aspectResult
	if err := s.llm.GenerateJSON(ctx, anthropic.Request{
		System:    system,
		Prompt:    prompt,
		MaxTokens: summaryMaxTokens,
	}, &sum); err != nil {
		log.Error().Err(err).Msg("summary call failed")
		return failedResult
	}
	return clamp(sum)
}

// loadResults is cache-aside over the cv_evaluations rows.
func (s *Service) loadResults(ctx context.Context, fileID string) ([]Evaluation, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKeyPrefix+fileID).Bytes()
		if err == nil {
			var rows []Evaluation
			if jsonErr := json.Unmarshal(raw, &rows); jsonErr == nil {
				return rows, nil
			}
		}
	}

	rows, err := s.repo.ListByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		s.storeCache(ctx, fileID, rows)
	}
	return rows, nil
}

func (s *Service) storeCache(ctx context.Context, fileID string, rows []Evaluation) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+fileID, raw, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("result cache write failed")
	}
}

func (s *Service) dropCache(ctx context.Context, fileID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKeyPrefix+fileID).Err(); err != nil {
		log.Warn().Err(err).Str("file_id", fileID).Msg("result cache drop failed")
	}
}

func (s *Service) notify(userID string, event Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(userID, event)
}

func clamp(r aspectResult) aspectResult {
	if r.Score < 0 {
		r.Score = 0
	}
	if r.Score > 10 {
		r.Score = 10
	}
	return r
}

func detectMediaType(data []byte) string {
	mediaType := http.DetectContentType(data)
	if idx := strings.Index(mediaType, ";"); idx != -1 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	return mediaType
}
