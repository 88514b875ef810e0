package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rivo/uniseg"

	"github.com/ConaryLabs/mira/internal/store"
)

// crossProjectContentCap is the grapheme cluster budget for a cross-project
// hit's content, per spec.md §4.2's "truncated at grapheme boundaries"
// requirement. Kept short since these are previews, not full recall - same
// idea as the handoff blob's per-message character cap.
const crossProjectContentCap = 240

// tightCrossProjectFactTypes earn the "You solved this in <project>" label
// instead of the looser "From <project>" one, per spec.md §4.2.
var tightCrossProjectFactTypes = map[string]bool{
	store.FactTypeDecision: true,
	store.FactTypePattern:  true,
}

// RecallHit is one scored memory result surfaced to the orchestrator. Label
// is only set on cross-project hits, carrying spec.md §4.2's "You solved
// this in <project>" / "From <project>" attribution text.
type RecallHit struct {
	RefID        string
	ProjectID    string
	Content      string
	Score        float64
	CrossProject bool
	Label        string
}

// RecallRequest parameterizes a recall call. ExcludedEntryIDs lets a caller
// (e.g. a summary being built) ask for turns it hasn't already absorbed.
type RecallRequest struct {
	ProjectID        string
	Query            string
	ExcludedEntryIDs map[string]bool
	IncludeCrossProject bool
}

// Recall fuses recent turns, semantic (vector) hits, and keyword hits into
// one ranked list, using the weighted formula:
//
//	final = w_sim*sim + w_recency*exp(-age_hours/24) + w_salience*(salience/10)
//
// Recall covers req.ProjectID only: it never adds hits from other projects,
// and the IncludeCrossProject field is not read. Cross-project hits come from
// RecallCrossProject, where CrossProjectDistanceThreshold only chooses
// between the tight and loose labels.
func (f *Fabric) Recall(ctx context.Context, req RecallRequest) ([]RecallHit, error) {
	excluded := req.ExcludedEntryIDs
	if excluded == nil {
		excluded = map[string]bool{}
	}

	rows, err := f.store.DB().Query(
		`SELECT id, project_id, content, salience, created_at FROM turns WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`,
		req.ProjectID, f.cfg.KRecent)
	if err != nil {
		return nil, err
	}
	var recent []store.Turn
	for rows.Next() {
		var t store.Turn
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Content, &t.Salience, &t.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		recent = append(recent, t)
	}
	rows.Close()

	byRef := make(map[string]*RecallHit)
	now := time.Now()
	for _, t := range recent {
		if excluded[t.ID] {
			continue
		}
		age := now.Sub(t.CreatedAt).Hours()
		score := f.cfg.WeightRecency*math.Exp(-age/24) + f.cfg.WeightSalience*(t.Salience/10)
		byRef[t.ID] = &RecallHit{RefID: t.ID, ProjectID: t.ProjectID, Content: t.Content, Score: score}
	}

	if f.embedder != nil && f.store.HasVectorIndex() && req.Query != "" {
		qvec, err := f.embedder.Embed(ctx, req.Query)
		if err == nil {
			matches, err := f.store.SearchMemoryVectors(req.ProjectID, qvec, f.cfg.KSemantic)
			if err == nil {
				f.mergeVectorMatches(byRef, matches, excluded)
			}
		}
	}

	if req.Query != "" {
		hits, err := f.store.KeywordSearch(req.ProjectID, req.Query, f.cfg.KSemantic)
		if err == nil {
			for _, refID := range hits {
				if excluded[refID] {
					continue
				}
				if _, ok := byRef[refID]; !ok {
					byRef[refID] = &RecallHit{RefID: refID, ProjectID: req.ProjectID, Score: 0}
				}
				byRef[refID].Score += f.cfg.WeightSimilarity * 0.5
			}
		}
	}

	out := make([]RecallHit, 0, len(byRef))
	for _, h := range byRef {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > f.cfg.KPerHead {
		out = out[:f.cfg.KPerHead]
	}
	return out, nil
}

func (f *Fabric) mergeVectorMatches(byRef map[string]*RecallHit, matches []store.VectorMatch, excluded map[string]bool) {
	for _, m := range matches {
		if excluded[m.RefID] {
			continue
		}
		sim := 1 - m.Distance
		if h, ok := byRef[m.RefID]; ok {
			h.Score += f.cfg.WeightSimilarity * sim
			continue
		}
		byRef[m.RefID] = &RecallHit{RefID: m.RefID, Score: f.cfg.WeightSimilarity * sim}
	}
}

// crossProjectLabel implements spec.md §4.2's attribution rule: a tight
// match - within the cross-project distance threshold and a decision or
// pattern fact - reads "You solved this in <project>"; anything else
// admitted by the cross-project predicate reads "From <project>".
func crossProjectLabel(projectName string, distance float64, factType string, tightThreshold float64) string {
	if distance < tightThreshold && tightCrossProjectFactTypes[factType] {
		return fmt.Sprintf("You solved this in %s", projectName)
	}
	return fmt.Sprintf("From %s", projectName)
}

// truncateAtGrapheme shortens s to at most max grapheme clusters, appending
// an ellipsis when anything was cut. Never splits a multi-byte codepoint or
// a combined cluster (e.g. an emoji plus modifier) mid-way, per spec.md
// §4.2's "truncated at grapheme boundaries (never mid-codepoint)" rule.
func truncateAtGrapheme(s string, max int) string {
	g := uniseg.NewGraphemes(s)
	var b strings.Builder
	n := 0
	for g.Next() {
		if n >= max {
			b.WriteString("…")
			return b.String()
		}
		b.WriteString(g.Str())
		n++
	}
	return b.String()
}

// mergeCrossProjectFacts folds one other project's filtered fact matches
// into byRef, attaching the source project's name and spec.md §4.2's
// tight/loose label. A fact already present under the same ref_id (which
// cannot happen across distinct projects, since ref_id is a fact's own id)
// is left untouched rather than double-counted.
func (f *Fabric) mergeCrossProjectFacts(byRef map[string]*RecallHit, matches []store.FactMatch, excluded map[string]bool, projectName string) {
	for _, m := range matches {
		if excluded[m.RefID] {
			continue
		}
		if _, ok := byRef[m.RefID]; ok {
			continue
		}
		sim := 1 - m.Distance
		byRef[m.RefID] = &RecallHit{
			RefID:        m.RefID,
			ProjectID:    m.ProjectID,
			Content:      truncateAtGrapheme(m.Statement, crossProjectContentCap),
			Score:        f.cfg.WeightSimilarity * sim,
			CrossProject: true,
			Label:        crossProjectLabel(projectName, m.Distance, m.FactType, f.cfg.CrossProjectDistanceThreshold),
		}
	}
}

// RecallCrossProject extends Recall with facts from other projects admitted
// by spec.md §4.2's cross-project predicate (scope='project', status
// 'active', not suspicious, an allowed fact_type), labeled per-hit with
// where they came from. Only runs when the caller opts in, since most turns
// are scoped to a single project.
func (f *Fabric) RecallCrossProject(ctx context.Context, req RecallRequest, otherProjectIDs []string) ([]RecallHit, error) {
	base, err := f.Recall(ctx, req)
	if err != nil || f.embedder == nil || !f.store.HasVectorIndex() || req.Query == "" {
		return base, err
	}

	qvec, err := f.embedder.Embed(ctx, req.Query)
	if err != nil {
		return base, nil
	}

	excluded := req.ExcludedEntryIDs
	if excluded == nil {
		excluded = map[string]bool{}
	}

	byRef := make(map[string]*RecallHit, len(base))
	for i := range base {
		byRef[base[i].RefID] = &base[i]
	}
	for _, pid := range otherProjectIDs {
		matches, err := f.store.SearchCrossProjectFacts(pid, qvec, f.cfg.KSemantic)
		if err != nil || len(matches) == 0 {
			continue
		}
		projectName := pid
		if proj, err := f.store.GetProject(pid); err == nil {
			projectName = proj.Name
		}
		f.mergeCrossProjectFacts(byRef, matches, excluded, projectName)
	}

	out := make([]RecallHit, 0, len(byRef))
	for _, h := range byRef {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > f.cfg.KPerHead {
		out = out[:f.cfg.KPerHead]
	}
	return out, nil
}
