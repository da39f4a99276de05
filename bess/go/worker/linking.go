package worker

import (
	"context"

	"github.com/google/uuid"
	"github.com/witto13/BESS-Crawler/bess/go/resolve"
	"github.com/witto13/BESS-Crawler/bess/go/rollup"
	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sklog"
)

// newProjectID derives the project ID from the founding procedure, so a
// re-run that starts the same project lands on the same row.
func newProjectID(procedureID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("project/"+procedureID.String()))
}

// linkProject resolves a procedure against the municipality's existing
// project entities and returns the project it belongs to, updated by the
// rollup, plus the link row. A procedure that matches nothing starts a new
// project. Never returns a nil project on a nil error.
func (w *Worker) linkProject(ctx context.Context, proc *types.Procedure) (*types.ProjectEntity, *types.ProjectLink, error) {
	sig := resolve.ComputeSignature(proc)
	existing, err := w.store.ProjectEntities(ctx, proc.MunicipalityKey)
	if err != nil {
		return nil, nil, skerr.Wrap(err)
	}

	if match := resolve.FindMatch(sig, existing); match != nil {
		pe := match.Project
		procedures, err := w.store.ProceduresForProject(ctx, pe.ID)
		if err != nil {
			return nil, nil, skerr.Wrap(err)
		}
		procedures = append(procedures, proc)
		rollup.Apply(pe, sig, procedures)
		sklog.Debugf("Linked procedure %s to project %s (%s)", proc.ID, pe.ID, match.Rule)
		return pe, &types.ProjectLink{
			ProjectID:   pe.ID,
			ProcedureID: proc.ID,
			MatchRule:   match.Rule,
			MatchScore:  match.Score,
		}, nil
	}

	rule, score := resolve.NewProjectLink(proc.ProcedureType)
	pe := &types.ProjectEntity{
		ID:              newProjectID(proc.ID),
		MunicipalityKey: proc.MunicipalityKey,
	}
	rollup.Apply(pe, sig, []*types.Procedure{proc})
	sklog.Debugf("Created project %s for procedure %s (%s)", pe.ID, proc.ID, rule)
	return pe, &types.ProjectLink{
		ProjectID:   pe.ID,
		ProcedureID: proc.ID,
		MatchRule:   rule,
		MatchScore:  score,
	}, nil
}
