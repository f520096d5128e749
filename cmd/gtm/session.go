// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/gigantum/gtm/internal/build"
	"github.com/gigantum/gtm/internal/labconfig"
	"github.com/gigantum/gtm/internal/naming"
	"github.com/gigantum/gtm/internal/platform"
	"github.com/gigantum/gtm/internal/runner"
	"github.com/gigantum/gtm/internal/tester"
)

const (
	// frontendBuildDir holds the UI builder Dockerfile, relative to the resources dir.
	frontendBuildDir = "frontend_build"
	labManagerLabel  = "LabManager Image"
	developerLabel   = "Developer Image"
	baseImageLabel   = "Base Image"
)

// developerLabels are applied to every developer image.
var developerLabels = map[string]string{
	"io.gigantum.app":              "labmanager-dev",
	"io.gigantum.maintainer.email": "hello@gigantum.io",
}

func (s *session) buildOptions() build.Options {
	return build.Options{
		Verbose: s.flags.verbose,
		Output:  s.output(),
		NoCache: s.flags.noCache,
		Pull:    true,
		Timeout: s.cfg.Engine.Timeout,
	}
}

// withTimeout bounds a single runner or tester call by engine.timeout.
func (s *session) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Engine.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Engine.Timeout)
	}
	return context.WithCancel(ctx)
}

// overrideTag validates --override-name with the strict name rule, since the
// labmanager image and container share it.
func (s *session) overrideTag() (naming.ImageTag, bool, error) {
	if s.flags.overrideName == "" {
		return "", false, nil
	}
	name, err := naming.Validate(s.flags.overrideName)
	if err != nil {
		return "", false, err
	}
	tag, err := naming.ParseImageTag(name)
	if err != nil {
		return "", false, err
	}
	return tag, true, nil
}

// labManagerStrategy names the image "<image_prefix>-<commit8>", or the override name.
func (s *session) labManagerStrategy() (build.ImageNameStrategy, error) {
	tag, ok, err := s.overrideTag()
	if err != nil {
		return nil, err
	}
	if ok {
		return build.FixedTag(tag), nil
	}
	return build.CommitNameTag(s.cfg.LabManager.ImagePrefix, s.cfg.Root, s.app.VCS), nil
}

func (s *session) labManagerTarget() build.Target {
	return build.Target{Name: "labmanager", Dir: s.cfg.ResourcesDir}
}

// labManagerName resolves the image tag and the container name, which share a value.
func (s *session) labManagerName(ctx context.Context) (naming.ImageTag, naming.ContainerName, error) {
	strategy, err := s.labManagerStrategy()
	if err != nil {
		return "", "", err
	}
	tag, err := strategy(ctx, s.labManagerTarget())
	if err != nil {
		return "", "", err
	}
	name, err := naming.NewContainerName(tag.String())
	if err != nil {
		return "", "", err
	}
	return tag, name, nil
}

func (s *session) labManagerBuilder() (*build.Builder, error) {
	strategy, err := s.labManagerStrategy()
	if err != nil {
		return nil, err
	}

	hooks := []build.Hook{build.ConfigMergeHook(labconfig.DefaultPaths(s.cfg.ResourcesDir))}
	if s.cfg.LabManager.Frontend {
		frontendDir := filepath.Join(s.cfg.ResourcesDir, frontendBuildDir)
		hooks = append(hooks, build.FrontendHook(s.engine, build.FrontendOptions{
			Image:      s.cfg.LabManager.UIBuilderImage,
			ContextDir: frontendDir,
			OutputDir:  filepath.Join(frontendDir, "build"),
			MountPath:  build.DefaultUIBuildMount,
			HostPath:   func(p string) string { return platform.DockerizePath(p, runtime.GOOS) },
		}))
	}

	return build.NewBuilder(s.engine, build.SingleTarget{Target: s.labManagerTarget()}, strategy, build.DiscardStatus{},
		build.WithConfirmer(s.confirmer()),
		build.WithLogger(s.logger),
		build.WithObserver(buildProgress(s.output(), labManagerLabel)),
		build.WithPreBuild(hooks...),
	), nil
}

// developerStrategy tags "<developer.image>:<commit8>", or "<developer.image>:<override>".
func (s *session) developerStrategy() (build.ImageNameStrategy, error) {
	if s.flags.overrideName == "" {
		return build.CommitSuffixTag(s.cfg.Developer.Image, s.cfg.Root, s.app.VCS), nil
	}
	tag, err := naming.NewImageTag(s.cfg.Developer.Image, s.flags.overrideName)
	if err != nil {
		return nil, err
	}
	return build.FixedTag(tag), nil
}

func (s *session) developerBuilder() (*build.Builder, error) {
	strategy, err := s.developerStrategy()
	if err != nil {
		return nil, err
	}
	latest, err := s.developerLatest()
	if err != nil {
		return nil, err
	}

	target := build.Target{Name: "developer", Dir: s.cfg.ResourcesDir}
	return build.NewBuilder(s.engine, build.SingleTarget{Target: target}, strategy, build.DiscardStatus{},
		build.WithConfirmer(s.confirmer()),
		build.WithLogger(s.logger),
		build.WithObserver(buildProgress(s.output(), developerLabel)),
		build.WithDockerfile(s.cfg.Developer.Dockerfile),
		build.WithLabels(developerLabels),
		build.WithExtraTags(latest.String()),
		build.WithPreBuild(build.ConfigMergeHook(labconfig.DeveloperPaths(s.cfg.ResourcesDir))),
	), nil
}

// developerLatest is the tag developer containers are started from.
func (s *session) developerLatest() (naming.ImageTag, error) {
	return naming.NewImageTag(s.cfg.Developer.Image, "latest")
}

func (s *session) developerContainer() (naming.ContainerName, error) {
	if s.flags.overrideName != "" {
		return naming.NewContainerName(s.flags.overrideName)
	}
	return naming.NewContainerName(s.cfg.Developer.ContainerName)
}

func (s *session) baseImageBuilder() *build.Builder {
	strategy := build.CommitDateTag(s.cfg.BaseImage.Namespace, s.cfg.Root, s.app.VCS, s.app.Now)
	return build.NewBuilder(s.engine, build.DirectoryTargets{Root: s.cfg.BaseImageDir()}, strategy, s.tracker,
		build.WithConfirmer(s.confirmer()),
		build.WithLogger(s.logger),
		build.WithObserver(buildProgress(s.output(), baseImageLabel)),
	)
}

func (s *session) runner() (*runner.Runner, error) {
	profile, err := s.app.Platform(s.cfg.Runner.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("detect host platform: %w", err)
	}
	s.logger.Debug("host platform", "os", profile.GOOS, "work_dir", profile.WorkDir, "docker_socket", profile.DockerSocket)

	return runner.New(s.engine, profile,
		runner.WithLogger(s.logger),
		runner.WithObserver(func(name string, from, to runner.State) {
			s.logger.Debug("container state", "name", name, "from", from, "to", to)
		}),
	), nil
}

func (s *session) tester() *tester.Tester {
	return tester.New(s.engine, s.cfg.Tester.Command, s.output(), s.app.stderr)
}
