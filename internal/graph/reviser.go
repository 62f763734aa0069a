package graph

import (
	"context"
	"errors"

	"github.com/dyike/cortexanalyst/consts"
	"github.com/dyike/cortexanalyst/internal/critique"
	"github.com/dyike/cortexanalyst/internal/pipeline"
	"github.com/dyike/cortexanalyst/models"
)

// reviser feeds a correction directive back into the composer. The
// directive artifact lives only for the duration of one revision.
type reviser struct {
	p  *Pipeline
	st *pipeline.State
}

func (r *reviser) Revise(ctx context.Context, d critique.Directive, previous models.Draft) (models.Draft, error) {
	start := r.p.now()
	r.st.Put(consts.ArtifactDirective, d.Markdown())
	defer func() {
		if r.st.Artifacts != nil {
			r.st.Artifacts.Delete(consts.ArtifactDirective)
		}
	}()

	in := r.p.composeInput(r.st)
	if r.st.Artifacts != nil {
		in.Directive, _ = r.st.Artifacts.Get(consts.ArtifactDirective)
	}
	in.Previous = &previous

	draft, out := r.p.stages.Composer.Compose(ctx, in)
	out.Stage = consts.Revise
	r.st.Record(out)
	r.p.emit(r.st, out, start)
	if out.IsFatal() {
		return previous, errors.New(out.Reason)
	}
	r.st.Draft = draft
	r.st.Put(consts.ArtifactDraft, draft.Body)
	return draft, nil
}
