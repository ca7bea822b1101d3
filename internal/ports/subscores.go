package ports

import (
	"context"
	"sync"

	"github.com/ahrav/fakescope/internal/domain"
)

type subScoreKey struct{}

// SubScoreRecorder collects the member outputs that a grouped classifier
// reports during one Predict call. The recorder travels in the context, so
// it reaches the classifier through any middleware in between.
// It is safe for concurrent use.
type SubScoreRecorder struct {
	mu     sync.Mutex
	scores []domain.MemberScore
}

// WithSubScoreRecorder returns a child context carrying a fresh recorder.
func WithSubScoreRecorder(ctx context.Context) (context.Context, *SubScoreRecorder) {
	rec := &SubScoreRecorder{}
	return context.WithValue(ctx, subScoreKey{}, rec), rec
}

// RecordSubScores appends scores to the recorder carried by ctx.
// It does nothing when ctx has no recorder.
func RecordSubScores(ctx context.Context, scores ...domain.MemberScore) {
	rec, ok := ctx.Value(subScoreKey{}).(*SubScoreRecorder)
	if !ok || len(scores) == 0 {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.scores = append(rec.scores, scores...)
}

// Scores returns a copy of the recorded scores, or nil if none were reported.
func (r *SubScoreRecorder) Scores() []domain.MemberScore {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.scores) == 0 {
		return nil
	}
	return append([]domain.MemberScore(nil), r.scores...)
}
