// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ContainerEngineNotFoundId Id = iota + 1
	DaemonUnreachableId
	PermissionDeniedId
	InvalidNameId
	CommitUnavailableId
	BuildTargetNotFoundId
	BuildFailedId
	LabConfigMergeFailedId
	PushFailedId
	NoLocalBuildsId
	TrackingFileCorruptId
	ContainerAlreadyRunningId
	ContainerNotRunningId
	ContainerNotFoundId
	TestsFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // gtm documentation for this issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range slices.Concat(i.docLinks, i.extLinks) {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

gtm needs Docker or Podman to build and run images, and neither could be found.

## Things you can try:
- Install Docker and make sure the ` + "`docker`" + ` binary is on your PATH
- Or install Podman (gtm falls back to it automatically)
- Pick the engine explicitly in ` + "`gtm.yaml`" + `:
~~~yaml
engine:
  type: docker   # docker | podman | api | auto
~~~`,
		extLinks: []HttpLink{"https://docs.docker.com/engine/install/"},
	}

	daemonUnreachableIssue = &Issue{
		id: DaemonUnreachableId,
		mdMsg: `
# Cannot reach the Docker daemon!

The engine binary is installed but the daemon did not answer.

## Things you can try:
- Start Docker Desktop, or the service on Linux:
~~~
$ sudo systemctl start docker
~~~
- Check ` + "`DOCKER_HOST`" + ` if you use a remote engine
- Verify with:
~~~
$ docker info
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

Your user is not allowed to talk to the container engine.

## Things you can try:
- Add yourself to the docker group and log in again:
~~~
$ sudo usermod -aG docker $USER
~~~
- Use rootless Podman instead`,
		extLinks: []HttpLink{"https://docs.docker.com/engine/install/linux-postinstall/"},
	}

	invalidNameIssue = &Issue{
		id: InvalidNameId,
		mdMsg: `
# Invalid image or container name!

Names may only contain letters, digits, and single hyphens, and cannot
start or end with a hyphen.

## Examples:
- ` + "`labmanager-abcdef12`" + ` is valid
- ` + "`-labmanager`" + `, ` + "`labmanager-`" + ` and ` + "`lab--manager`" + ` are not`,
	}

	commitUnavailableIssue = &Issue{
		id: CommitUnavailableId,
		mdMsg: `
# Cannot read the current commit!

Default image tags include the first 8 characters of the gtm repository's HEAD
commit, and it could not be read.

## Things you can try:
- Run gtm from a git clone of the repository, not from an archive
- Make sure the repository has at least one commit
- Set ` + "`root`" + ` in ` + "`gtm.yaml`" + ` to the repository location
- Pass an explicit name with ` + "`--override-name`",
	}

	buildTargetNotFoundIssue = &Issue{
		id: BuildTargetNotFoundId,
		mdMsg: `
# Build target not found!

The requested image has no build directory.

## Things you can try:
- List the available base images:
~~~
$ ls resources/submodules/base-images
~~~
- Make sure the submodules are checked out:
~~~
$ git submodule update --init --recursive
~~~`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Image build failed!

The container engine reported an error while building. The tracking file
was not updated for this image.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the full build output
- Re-run with ` + "`--no-cache`" + ` if a cached layer is stale
- Check disk space with ` + "`docker system df`",
	}

	labConfigMergeFailedIssue = &Issue{
		id: LabConfigMergeFailedId,
		mdMsg: `
# Failed to generate the labmanager configuration!

The labmanager defaults could not be merged with your override file.

## Things you can try:
- Check that ` + "`labmanager-config-override.yaml`" + ` exists and is valid YAML
- Make sure the labmanager-common submodule is checked out`,
	}

	pushFailedIssue = &Issue{
		id: PushFailedId,
		mdMsg: `
# Image push failed!

The registry rejected the push. Images pushed before the failure stay
marked as published.

## Things you can try:
- Log in to the registry:
~~~
$ docker login
~~~
- Check that your account can push to the image namespace`,
		extLinks: []HttpLink{"https://docs.docker.com/reference/cli/docker/login/"},
	}

	noLocalBuildsIssue = &Issue{
		id: NoLocalBuildsId,
		mdMsg: `
# Nothing to publish!

There is no build tracking file yet. Images must be built locally first.

## Things you can try:
~~~
$ gtm baseimage build
$ gtm baseimage publish
~~~`,
	}

	trackingFileCorruptIssue = &Issue{
		id: TrackingFileCorruptId,
		mdMsg: `
# Build tracking file is corrupt!

` + "`.image-build-status.json`" + ` could not be decoded.

## Things you can try:
- Inspect the file; it must be a JSON object of
  ` + "`{\"<tag>\": {\"build\": bool, \"publish\": bool}}`" + ` entries
- Delete it and rebuild the images you want to publish`,
	}

	containerAlreadyRunningIssue = &Issue{
		id: ContainerAlreadyRunningId,
		mdMsg: `
# Container already started!

A container with this name is already running.

## Things you can try:
~~~
$ gtm labmanager stop
~~~`,
	}

	containerNotRunningIssue = &Issue{
		id: ContainerNotRunningId,
		mdMsg: `
# Container not started!

No running container has this name.

## Things you can try:
- List running containers:
~~~
$ docker ps
~~~
- Pass the container name with ` + "`--override-name`",
	}

	containerNotFoundIssue = &Issue{
		id: ContainerNotFoundId,
		mdMsg: `
# Container not found!

Tests run inside a running labmanager container, and exactly one container
with the requested name must be running.

## Things you can try:
~~~
$ gtm labmanager start
$ gtm labmanager test
~~~`,
	}

	testsFailedIssue = &Issue{
		id: TestsFailedId,
		mdMsg: `
# Tests failed!

The test suite inside the container exited with a non-zero code. The output
above shows which tests failed.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check ` + "`gtm.yaml`" + ` for YAML syntax errors
- Show the effective configuration:
~~~
$ gtm config show
~~~
- Environment variables use the ` + "`GTM_`" + ` prefix, e.g. ` + "`GTM_ENGINE_TYPE=podman`",
	}

	issues = map[Id]*Issue{
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		daemonUnreachableIssue.Id():       daemonUnreachableIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
		invalidNameIssue.Id():             invalidNameIssue,
		commitUnavailableIssue.Id():       commitUnavailableIssue,
		buildTargetNotFoundIssue.Id():     buildTargetNotFoundIssue,
		buildFailedIssue.Id():             buildFailedIssue,
		labConfigMergeFailedIssue.Id():    labConfigMergeFailedIssue,
		pushFailedIssue.Id():              pushFailedIssue,
		noLocalBuildsIssue.Id():           noLocalBuildsIssue,
		trackingFileCorruptIssue.Id():     trackingFileCorruptIssue,
		containerAlreadyRunningIssue.Id(): containerAlreadyRunningIssue,
		containerNotRunningIssue.Id():     containerNotRunningIssue,
		containerNotFoundIssue.Id():       containerNotFoundIssue,
		testsFailedIssue.Id():             testsFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
