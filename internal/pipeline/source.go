package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ideaforge/ideaforge/internal/prd"
	"github.com/ideaforge/ideaforge/internal/protocol"
)

// syntheticSource drives a run with locally generated step events when the
// backend's streaming endpoint is unavailable. The channel is unbuffered on
// purpose: each step's in_progress event is sent before its backend call, so
// when the controller stops reading at the review gate the producer blocks
// before touching the repository step.
type syntheticSource struct {
	events    chan protocol.StepEvent
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *syntheticSource) Events() <-chan protocol.StepEvent { return s.events }

func (s *syntheticSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *syntheticSource) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *syntheticSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// send delivers one event unless the run was cancelled or the source closed.
func (s *syntheticSource) send(ctx context.Context, ev protocol.StepEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	}
}

// newSyntheticSource starts the local pipeline, driving all six steps.
func (c *Controller) newSyntheticSource(ctx context.Context) EventSource {
	s := &syntheticSource{
		events: make(chan protocol.StepEvent),
		done:   make(chan struct{}),
	}
	go c.runLocalSteps(ctx, s)
	return s
}

// localRun carries per-run state between local steps.
type localRun struct {
	geminiOK    bool
	repoCreated bool
}

func (c *Controller) runLocalSteps(ctx context.Context, s *syntheticSource) {
	defer close(s.events)

	lr := &localRun{}
	if in := c.inputSnapshot(); in.GeminiKey != "" {
		if h, err := c.deps.Backend.Health(ctx); err == nil && h.GeminiAvailable {
			lr.geminiOK = true
		}
	}

	for _, step := range Steps() {
		if !s.send(ctx, protocol.StepEvent{Step: step, Status: protocol.StatusInProgress, Detail: stepStartDetail(step)}) {
			return
		}
		// Re-snapshot per step: credentials may have been refreshed at
		// the review gate.
		ev, err := c.localStep(ctx, step, c.inputSnapshot(), lr)
		if err != nil {
			s.setErr(err)
			return
		}
		if !s.send(ctx, ev) {
			return
		}
		c.deps.Sleep(ctx, c.deps.StepDelay)
		if ctx.Err() != nil {
			return
		}
	}

	s.send(ctx, protocol.StepEvent{
		Step:   protocol.StepPipeline,
		Status: protocol.StatusCompleted,
		Detail: "Pipeline completed",
	})
}

// localStep executes one step, preferring the backend's per-step endpoints
// and degrading to deterministic local builders when a call fails.
func (c *Controller) localStep(ctx context.Context, step protocol.Step, in RunInput, lr *localRun) (protocol.StepEvent, error) {
	switch step {
	case protocol.StepEnhanceIdea:
		if lr.geminiOK {
			idea, err := c.deps.Backend.EnhanceIdea(ctx, in.GeminiKey, in.IdeaText, in.TechPreferences)
			if err == nil {
				return completedEvent(step, "Idea enhanced", &protocol.EventData{
					EnhancedIdea: idea,
					ProjectTitle: idea.Title,
					Description:  idea.Description,
				}), nil
			}
			log.Printf("enhance call failed, building idea locally: %v", err)
		}
		idea := prd.BuildEnhancedIdea(in.IdeaText, in.TechPreferences)
		return completedEvent(step, "Idea enhanced (offline)", &protocol.EventData{
			EnhancedIdea: &idea,
			ProjectTitle: idea.Title,
			Description:  idea.Description,
			Simulated:    true,
		}), nil

	case protocol.StepGeneratePRD:
		idea := c.currentIdea()
		if lr.geminiOK {
			doc, md, err := c.deps.Backend.GeneratePRD(ctx, in.GeminiKey, idea)
			if err == nil {
				detail := fmt.Sprintf("PRD generated: %d epics, %d features", doc.EpicCount(), doc.FeatureCount())
				return completedEvent(step, detail, &protocol.EventData{PRD: doc, PRDMarkdown: md}), nil
			}
			log.Printf("prd call failed, using canonical fallback: %v", err)
		}
		doc := prd.FallbackDocument(idea)
		md := prd.RenderMarkdown(doc, idea)
		detail := fmt.Sprintf("PRD generated: %d epics, %d features", doc.EpicCount(), doc.FeatureCount())
		return completedEvent(step, detail, &protocol.EventData{PRD: doc, PRDMarkdown: md, Simulated: true}), nil

	case protocol.StepCreateRepo:
		idea := c.currentIdea()
		name := prd.SanitizeRepoName(idea.Title)
		if in.GithubToken != "" {
			info, err := c.deps.Backend.CreateRepo(ctx, in.GithubToken, name, idea.Description, in.Private)
			if err == nil {
				lr.repoCreated = true
				return completedEvent(step, "Repository created: "+info.FullName, &protocol.EventData{
					RepoURL:      info.URL,
					RepoFullName: info.FullName,
				}), nil
			}
			log.Printf("create repo failed, simulating: %v", err)
		}
		owner := in.GithubUser
		if owner == "" {
			owner = "local"
		}
		fullName := owner + "/" + name
		return completedEvent(step, "Repository simulated: "+fullName, &protocol.EventData{
			RepoURL:      "https://github.com/" + fullName,
			RepoFullName: fullName,
			Simulated:    true,
		}), nil

	case protocol.StepExtractFeatures:
		sel := c.currentSelection()
		return completedEvent(step, fmt.Sprintf("%d features selected", len(sel)), &protocol.EventData{
			FeaturesCount: len(sel),
		}), nil

	case protocol.StepImplement:
		sel := c.currentSelection()
		detail := fmt.Sprintf("Implementation planned for %d features", len(sel))
		return completedEvent(step, detail, &protocol.EventData{Simulated: true}), nil

	case protocol.StepPublish:
		_, fullName := c.currentRepo()
		if in.GithubToken != "" && lr.repoCreated && fullName != "" {
			idea := c.currentIdea()
			files := buildProjectFiles(&idea, c.currentSelection(), c.currentMarkdown())
			err := c.deps.Backend.PushFiles(ctx, in.GithubToken, fullName, files, "Initial project scaffold")
			if err == nil {
				return completedEvent(step, "Files pushed to "+fullName, nil), nil
			}
			log.Printf("push failed, leaving repository empty: %v", err)
		}
		return completedEvent(step, "Publish simulated", &protocol.EventData{Simulated: true}), nil
	}
	return protocol.StepEvent{}, fmt.Errorf("unknown step %q", step)
}

func completedEvent(step protocol.Step, detail string, data *protocol.EventData) protocol.StepEvent {
	return protocol.StepEvent{Step: step, Status: protocol.StatusCompleted, Detail: detail, Data: data}
}

func stepStartDetail(step protocol.Step) string {
	switch step {
	case protocol.StepEnhanceIdea:
		return "Enhancing idea"
	case protocol.StepGeneratePRD:
		return "Generating PRD"
	case protocol.StepCreateRepo:
		return "Creating repository"
	case protocol.StepExtractFeatures:
		return "Extracting features"
	case protocol.StepImplement:
		return "Implementing features"
	case protocol.StepPublish:
		return "Publishing project"
	}
	return string(step)
}

// buildProjectFiles assembles the initial commit for a published project.
func buildProjectFiles(idea *prd.EnhancedIdea, selected []prd.FeatureRef, prdMarkdown string) map[string]string {
	var readme strings.Builder
	fmt.Fprintf(&readme, "# %s\n\n%s\n", idea.Title, idea.Description)
	if len(idea.TechStack.Backend) > 0 || len(idea.TechStack.Frontend) > 0 {
		readme.WriteString("\n## Tech Stack\n\n")
		writeStackLine(&readme, "Frontend", idea.TechStack.Frontend)
		writeStackLine(&readme, "Backend", idea.TechStack.Backend)
		writeStackLine(&readme, "Database", idea.TechStack.Database)
		writeStackLine(&readme, "Infrastructure", idea.TechStack.Infrastructure)
	}

	if prdMarkdown == "" {
		prdMarkdown = "# Product Requirements Document: " + idea.Title + "\n"
	}

	var feats strings.Builder
	feats.WriteString("# Features\n\n")
	for _, f := range selected {
		fmt.Fprintf(&feats, "- **%s** (%s, %s): %s\n", f.Feature.Name, f.EpicName, f.Feature.Complexity, f.Feature.Description)
	}

	return map[string]string{
		"README.md":   readme.String(),
		"PRD.md":      prdMarkdown,
		"FEATURES.md": feats.String(),
	}
}

func writeStackLine(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(items, ", "))
}
