// SPDX-License-Identifier: MPL-2.0

// Package container abstracts the container engine gtm drives.
//
// The Engine interface covers the operations the build, publish, run and test
// flows need: image existence, build, tag, push and removal, plus container
// run, list, stop, prune and exec. DockerEngine and PodmanEngine shell out to
// the CLI through BaseCLIEngine; APIEngine talks to the Docker Engine API.
//
// Engine selection uses NewEngine(EngineType), where docker and podman fall back
// to each other, or AutoDetectEngine() for preference-less detection.
//
// Every engine failure is returned as an *EngineError. Nothing is retried;
// ClassifyFailure only picks the hint shown to the user.
package container
