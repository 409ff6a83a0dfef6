// Copyright (C) 2025 Deck Contributors (maintainers@deckdev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
Package launch drives one interactive launch session end to end.

The orchestrator is a state machine over a single session: ensure the
layer skeleton, sync templates, resolve resources, pick an engine, run
the selection-specific preparation (copy, environment rewrite), run the
port pipeline, and hand the container to the lifecycle controller. Every
failure is recovered at the Launch boundary into a LaunchResult; nothing
escapes to the CLI as a raw error.
*/
package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deckdev/deck/cmd/deck/config"
	"github.com/deckdev/deck/cmd/deck/internal/engine"
	"github.com/deckdev/deck/cmd/deck/internal/envfile"
	"github.com/deckdev/deck/cmd/deck/internal/lifecycle"
	"github.com/deckdev/deck/cmd/deck/internal/ports"
	"github.com/deckdev/deck/cmd/deck/internal/proc"
	"github.com/deckdev/deck/cmd/deck/internal/resource"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNilDependency is returned by NewOrchestrator when a required
	// collaborator is missing.
	ErrNilDependency = errors.New("required dependency is nil")

	// ErrConfigurationMissing means no usable resource exists in any
	// layer.
	ErrConfigurationMissing = errors.New("no usable configuration in any layer")

	// ErrPortConflictUnresolved means the user declined the offered port
	// resolutions, or no safe alternative existed.
	ErrPortConflictUnresolved = errors.New("port conflict left unresolved")

	// ErrEngineUnavailable means no container engine is usable after
	// detection and any installation attempt.
	ErrEngineUnavailable = errors.New("no usable container engine")

	// ErrEngineInstallFailed means the installer collaborator ran and
	// did not produce a usable engine.
	ErrEngineInstallFailed = errors.New("container engine installation failed")
)

// timestampLayout formats build timestamps embedded in Images entry
// names: yyyyMMdd-HHmm.
const timestampLayout = "20060102-1504"

// =============================================================================
// Types
// =============================================================================

// LaunchResult is the process-level outcome of one session. The CLI
// maps Success to the exit code and prints Message verbatim.
type LaunchResult struct {
	Success       bool
	Message       string
	ImageName     string
	ContainerName string
}

// Options configures one launch session.
type Options struct {
	// EnvFilter restricts resolution to one environment type;
	// EnvUnknown resolves everything.
	EnvFilter resource.EnvironmentType

	// ForceSync syncs templates even inside the cache TTL window.
	ForceSync bool
}

// Orchestrator wires the launch collaborators together. Construct with
// NewOrchestrator; the zero value is unusable.
type Orchestrator struct {
	resolver  *resource.Resolver
	detector  *engine.Detector
	checker   *ports.Checker
	runner    proc.Runner
	syncer    SyncProvider
	installer EngineInstaller
	ui        UserPrompter
	cfg       *config.DeckConfig
	out       io.Writer

	// now is injectable for deterministic timestamped names in tests.
	now func() time.Time
}

// Deps are the collaborators an Orchestrator needs. Installer may be
// nil; every other field is required.
type Deps struct {
	Resolver  *resource.Resolver
	Detector  *engine.Detector
	Checker   *ports.Checker
	Runner    proc.Runner
	Syncer    SyncProvider
	Installer EngineInstaller
	UI        UserPrompter
	Config    *config.DeckConfig
	Out       io.Writer
}

// NewOrchestrator validates and assembles the session driver.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Resolver == nil:
		return nil, fmt.Errorf("%w: resolver", ErrNilDependency)
	case deps.Detector == nil:
		return nil, fmt.Errorf("%w: detector", ErrNilDependency)
	case deps.Checker == nil:
		return nil, fmt.Errorf("%w: checker", ErrNilDependency)
	case deps.Runner == nil:
		return nil, fmt.Errorf("%w: runner", ErrNilDependency)
	case deps.Syncer == nil:
		return nil, fmt.Errorf("%w: syncer", ErrNilDependency)
	case deps.UI == nil:
		return nil, fmt.Errorf("%w: ui", ErrNilDependency)
	case deps.Config == nil:
		return nil, fmt.Errorf("%w: config", ErrNilDependency)
	case deps.Out == nil:
		return nil, fmt.Errorf("%w: out", ErrNilDependency)
	}
	return &Orchestrator{
		resolver:  deps.Resolver,
		detector:  deps.Detector,
		checker:   deps.Checker,
		runner:    deps.Runner,
		syncer:    deps.Syncer,
		installer: deps.Installer,
		ui:        deps.UI,
		cfg:       deps.Config,
		out:       deps.Out,
		now:       time.Now,
	}, nil
}

// =============================================================================
// Session
// =============================================================================

// Launch runs one interactive session and always returns a result.
//
// # Description
//
// The session walks a fixed sequence: layer skeleton, template sync,
// resource resolution, user selection, engine detection (with one
// installation attempt), selection-specific preparation, port pipeline,
// lifecycle start. Every error, and any panic from a step, is converted
// into a failed LaunchResult with a human-readable message here; callers
// never see a raw error.
func (o *Orchestrator) Launch(ctx context.Context, opts Options) (result *LaunchResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("launch session panicked", "panic", r)
			result = &LaunchResult{
				Message: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	result, err := o.run(ctx, opts)
	if err != nil {
		slog.Error("launch session failed", "error", err)
		return &LaunchResult{Message: failureMessage(err)}
	}
	return result
}

func (o *Orchestrator) run(ctx context.Context, opts Options) (*LaunchResult, error) {
	if err := o.resolver.EnsureLayout(); err != nil {
		return nil, fmt.Errorf("create layer skeleton: %w", err)
	}

	if err := o.syncTemplates(ctx, opts.ForceSync); err != nil {
		return nil, err
	}

	set := o.resolver.Resolve(opts.EnvFilter)
	selected, err := o.selectResource(ctx, set)
	if err != nil {
		return nil, err
	}

	info, err := o.ensureEngine(ctx)
	if err != nil {
		return nil, err
	}

	return o.launchSelection(ctx, selected, info, opts)
}

// syncTemplates honors the auto-update setting. A failed sync is fatal
// only when no local templates exist to fall back on.
func (o *Orchestrator) syncTemplates(ctx context.Context, force bool) error {
	if !o.cfg.Templates.AutoUpdate && !force {
		return nil
	}

	result, err := o.syncer.Sync(ctx, force)
	if err == nil && result != nil && result.Success {
		for _, line := range result.Logs {
			slog.Debug("template sync", "log", line)
		}
		return nil
	}

	if len(o.resolver.Resolve(resource.EnvUnknown).Templates) > 0 {
		o.printf("template sync failed, continuing with existing local templates\n")
		return nil
	}
	return fmt.Errorf("%w: no templates available, check network or add templates manually",
		ErrConfigurationMissing)
}

// selectResource presents the merged option set and returns the choice.
func (o *Orchestrator) selectResource(ctx context.Context, set *resource.Set) (*resource.Resource, error) {
	var candidates []resource.Resource
	var labels []string

	appendLayer := func(tag string, resources []resource.Resource) {
		for _, r := range resources {
			if !r.IsAvailable {
				continue
			}
			candidates = append(candidates, r)
			labels = append(labels, fmt.Sprintf("[%s] %s (%s)", tag, r.Name, r.RelativeAge))
		}
	}
	appendLayer("image", set.Images)
	appendLayer("custom", set.Custom)
	appendLayer("template", set.Templates)

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no templates available in %s",
			ErrConfigurationMissing, resource.DeckDir)
	}

	idx, err := o.ui.Select(ctx, "Select a configuration to launch", labels)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(candidates) {
		return nil, fmt.Errorf("selection index %d out of range", idx)
	}
	return &candidates[idx], nil
}

// ensureEngine detects an engine, attempting one installation round when
// nothing usable is found.
func (o *Orchestrator) ensureEngine(ctx context.Context) (*engine.Info, error) {
	info := o.detector.Detect(ctx)
	if info.IsAvailable {
		return info, nil
	}

	if o.installer == nil {
		return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, info.ErrorMessage)
	}

	o.printf("no container engine found, attempting installation...\n")
	installed, err := o.installer.EnsureInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineInstallFailed, err)
	}
	if !installed {
		return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, info.ErrorMessage)
	}

	info = o.detector.Detect(ctx)
	if !info.IsAvailable {
		return nil, fmt.Errorf("%w: engine still unusable after installation: %s",
			ErrEngineInstallFailed, info.ErrorMessage)
	}
	return info, nil
}

// =============================================================================
// Selection branches
// =============================================================================

func (o *Orchestrator) launchSelection(ctx context.Context, selected *resource.Resource, info *engine.Info, opts Options) (*LaunchResult, error) {
	switch selected.Layer {
	case resource.LayerImages:
		env := opts.EnvFilter
		if env == resource.EnvUnknown {
			env = resource.EnvDevelopment
		}
		return o.launchImage(ctx, selected.Path, selected.Name, env, info)

	case resource.LayerCustom:
		return o.buildCustom(ctx, selected, info)

	case resource.LayerTemplates:
		return o.launchTemplate(ctx, selected, info)

	default:
		return nil, fmt.Errorf("unknown layer %q", selected.Layer)
	}
}

// buildCustom copies a Custom config into a fresh timestamped Images
// entry, rewrites it for the chosen environment, and launches it.
func (o *Orchestrator) buildCustom(ctx context.Context, selected *resource.Resource, info *engine.Info) (*LaunchResult, error) {
	env, err := o.promptEnvironment(ctx)
	if err != nil {
		return nil, err
	}

	imageName := timestampedName(selected.Name, o.now().Format(timestampLayout), env.Suffix())
	imagesRoot := o.resolver.LayerRoot(resource.LayerImages)

	destDir, finalName, err := CopyLayerEntry(selected.Path, imagesRoot, imageName)
	if err != nil {
		return nil, err
	}
	if err := RewriteEnvironment(destDir, env, o.cfg.Environments); err != nil {
		return nil, err
	}

	o.printf("prepared image entry %s\n", finalName)
	return o.launchImage(ctx, destDir, finalName, env, info)
}

// launchTemplate runs the template sub-workflow choice: copy to Custom
// for editing, or build straight through to Images and launch.
func (o *Orchestrator) launchTemplate(ctx context.Context, selected *resource.Resource, info *engine.Info) (*LaunchResult, error) {
	const (
		editableChoice = iota
		directChoice
	)
	idx, err := o.ui.Select(ctx, fmt.Sprintf("How do you want to use template %q?", selected.Name), []string{
		"create an editable config (copy to custom, edit before building)",
		"build and launch now",
	})
	if err != nil {
		return nil, err
	}

	customRoot := o.resolver.LayerRoot(resource.LayerCustom)
	customDir, customName, err := CopyLayerEntry(selected.Path, customRoot, selected.Name)
	if err != nil {
		return nil, err
	}

	if idx == editableChoice {
		return &LaunchResult{
			Success: true,
			Message: fmt.Sprintf("created editable config %q; edit it under %s and launch it with deck start",
				customName, customDir),
		}, nil
	}

	copied := *selected
	copied.Name = customName
	copied.Path = customDir
	return o.buildCustom(ctx, &copied, info)
}

func (o *Orchestrator) promptEnvironment(ctx context.Context) (resource.EnvironmentType, error) {
	envs := resource.Environments()
	labels := make([]string, len(envs))
	for i, e := range envs {
		labels[i] = string(e)
	}
	idx, err := o.ui.Select(ctx, "Target environment", labels)
	if err != nil {
		return resource.EnvUnknown, err
	}
	return envs[idx], nil
}

// =============================================================================
// Image launch (shared tail of every branch)
// =============================================================================

func (o *Orchestrator) launchImage(ctx context.Context, dir, imageName string, env resource.EnvironmentType, info *engine.Info) (*LaunchResult, error) {
	if missing := missingRequiredFiles(dir); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s is missing %s",
			ErrConfigurationMissing, imageName, strings.Join(missing, ", "))
	}

	containerName := containerNameFor(imageName, env)

	meta, err := resource.ReadMetadata(dir)
	if err != nil {
		slog.Warn("unreadable image metadata, assuming a rebuild is needed",
			"dir", dir, "error", err)
	}
	rebuild := shouldRebuild(meta)
	if !rebuild {
		o.printf("reusing built image %s (last status %s)\n", meta.ImageName, meta.BuildStatus)
	}

	mappings, err := o.portPipeline(ctx, dir, containerName)
	if err != nil {
		return nil, err
	}

	eng, err := engine.Handle(info, o.runner)
	if err != nil {
		return nil, err
	}
	controller, err := lifecycle.NewController(eng, o.checker)
	if err != nil {
		return nil, err
	}

	o.printf("starting %s with %s...\n", containerName, info.Type)
	startResult, err := controller.Start(ctx, lifecycle.StartOptions{
		ContainerName: containerName,
		ResourceDir:   dir,
		Build:         rebuild,
		PortMappings:  mappings,
	})
	if err != nil {
		o.recordBuildStatus(dir, imageName, containerName, resource.BuildStatusFailed)
		return nil, err
	}

	o.recordBuildStatus(dir, imageName, containerName, resource.BuildStatusRunning)

	return &LaunchResult{
		Success: true,
		Message: fmt.Sprintf("%s is running (%s, started in %s, ports %v)",
			containerName, startResult.Mode, startResult.StartupTime.Round(time.Millisecond),
			startResult.AllocatedPorts),
		ImageName:     imageName,
		ContainerName: containerName,
	}, nil
}

// shouldRebuild reports whether the recorded build state still requires
// a --build pass. No metadata means the entry was never built here.
func shouldRebuild(meta *resource.ImageMetadata) bool {
	if meta == nil {
		return true
	}
	switch meta.BuildStatus {
	case resource.BuildStatusBuilt, resource.BuildStatusRunning, resource.BuildStatusStopped:
		return false
	}
	return true
}

// recordBuildStatus writes `.deck-metadata`. Metadata is advisory, so a
// write failure only warns.
func (o *Orchestrator) recordBuildStatus(dir, imageName, containerName string, status resource.BuildStatus) {
	err := resource.WriteMetadata(dir, &resource.ImageMetadata{
		ImageName:     imageName,
		ContainerName: containerName,
		CreatedAt:     o.now(),
		BuildStatus:   status,
	})
	if err != nil {
		slog.Warn("could not write image metadata", "dir", dir, "error", err)
	}
}

// =============================================================================
// Port pipeline
// =============================================================================

// portPipeline scans the target `.env` for host-port conflicts and,
// with the user's consent, rewrites conflicted ports to free ones.
//
// # Description
//
// The scan is read-only. Mutation happens in exactly one place, behind
// an explicit confirmation, and is preceded by a `.env` backup;
// declining leaves the file byte-for-byte untouched and aborts the run.
// Afterwards PROJECT_NAME is aligned with the container name, which is
// best-effort: a failure there warns and the launch continues.
func (o *Orchestrator) portPipeline(ctx context.Context, dir, containerName string) ([]envfile.PortMapping, error) {
	envPath := filepath.Join(dir, ".env")
	f, err := envfile.Load(envPath)
	if err != nil {
		return nil, fmt.Errorf("port pipeline: %w", err)
	}
	mappings, err := f.PortMappings()
	if err != nil {
		return nil, fmt.Errorf("port pipeline: %w", err)
	}

	results, err := o.checker.ScanMappings(ctx, mappings)
	if err != nil {
		return nil, fmt.Errorf("port pipeline: %w", err)
	}

	conflicts := ports.Conflicted(results)
	if len(conflicts) > 0 {
		if err := o.resolveConflicts(ctx, f, mappings, conflicts); err != nil {
			return nil, err
		}
		// Reload so the caller sees the rewritten ports.
		if mappings, err = f.PortMappings(); err != nil {
			return nil, fmt.Errorf("port pipeline: %w", err)
		}
	}

	o.rewriteProjectName(f, containerName)
	return mappings, nil
}

func (o *Orchestrator) resolveConflicts(ctx context.Context, f *envfile.File, mappings []envfile.PortMapping, conflicts []*ports.ConflictInfo) error {
	keyByPort := make(map[int]string, len(mappings))
	// Every declared host port is off-limits as an alternative, whether
	// conflicted or not; picks made earlier in the plan join the set so
	// two conflicts never resolve to the same port.
	reserved := make(map[int]bool, len(mappings))
	for _, m := range mappings {
		keyByPort[m.HostPort] = m.Key
		reserved[m.HostPort] = true
	}

	// Collect an alternative per conflict up front so the user confirms
	// the complete plan, not one port at a time.
	type replacement struct {
		key      string
		from, to int
	}
	var plan []replacement

	for _, c := range conflicts {
		o.printf("%s\n", c.Describe())
		suggestions := o.checker.SuggestResolutions(ctx, c)

		var alt int
		for _, s := range suggestions {
			o.printf("  - %s\n", s.Description)
			if s.Kind == ports.SuggestAlternativePort && alt == 0 {
				alt = s.AlternativePort
			}
		}
		if alt == 0 || reserved[alt] {
			alt = o.checker.FindAlternativeExcluding(ctx, c.Port, c.Protocol, reserved)
		}
		if alt == 0 {
			return fmt.Errorf("%w: no free alternative near port %d",
				ErrPortConflictUnresolved, c.Port)
		}
		reserved[alt] = true
		plan = append(plan, replacement{key: keyByPort[c.Port], from: c.Port, to: alt})
	}

	ok, err := o.ui.Confirm(ctx, fmt.Sprintf(
		"Rewrite %d conflicted port(s) in .env (a backup is taken first)?", len(plan)))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: declined by user", ErrPortConflictUnresolved)
	}

	for _, r := range plan {
		f.Set(r.key, strconv.Itoa(r.to))
		o.printf("  %s: %d -> %d\n", r.key, r.from, r.to)
	}
	if err := f.WriteWithBackup(); err != nil {
		return fmt.Errorf("rewrite .env: %w", err)
	}
	return nil
}

// rewriteProjectName aligns PROJECT_NAME with the container name so
// compose project names do not collide across environments. Failure is
// non-fatal; the launch continues with the original name.
func (o *Orchestrator) rewriteProjectName(f *envfile.File, containerName string) {
	current, err := f.Get(envfile.ProjectNameKey)
	if err != nil || current == containerName {
		return
	}
	f.Set(envfile.ProjectNameKey, containerName)
	if err := f.WriteWithBackup(); err != nil {
		slog.Warn("could not rewrite project name, continuing with original",
			"name", current, "error", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// containerNameFor derives the deterministic container name for an
// image and environment. The environment suffix appears exactly once.
func containerNameFor(imageName string, env resource.EnvironmentType) string {
	if strings.HasSuffix(imageName, env.Suffix()) {
		return imageName
	}
	return imageName + env.Suffix()
}

func missingRequiredFiles(dir string) []string {
	var missing []string
	for _, name := range resource.RequiredFiles {
		if !pathExists(filepath.Join(dir, name)) {
			missing = append(missing, name)
		}
	}
	return missing
}

func (o *Orchestrator) printf(format string, args ...any) {
	fmt.Fprintf(o.out, format, args...)
}

// failureMessage renders the taxonomy errors with their remediation
// hints; anything unrecognized passes through verbatim.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return err.Error()
	case errors.Is(err, ErrPortConflictUnresolved):
		return err.Error() + "; free the port or edit .env manually and retry"
	case errors.Is(err, ErrEngineUnavailable):
		return err.Error() + "; install podman (preferred) or docker and retry"
	case errors.Is(err, ErrEngineInstallFailed):
		return err.Error()
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, resource.ErrDirectoryIntegrity):
		return err.Error()
	default:
		return err.Error()
	}
}
