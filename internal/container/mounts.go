// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// PortProtocolTCP is the TCP transport protocol for port mappings.
	PortProtocolTCP PortProtocol = "tcp"
	// PortProtocolUDP is the UDP transport protocol for port mappings.
	PortProtocolUDP PortProtocol = "udp"

	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"
)

var (
	// ErrInvalidVolumeMount is the sentinel error wrapped by InvalidVolumeMountError.
	ErrInvalidVolumeMount = errors.New("invalid volume mount")

	// ErrInvalidPortMapping is the sentinel error wrapped by InvalidPortMappingError.
	ErrInvalidPortMapping = errors.New("invalid port mapping")
)

type (
	// PortProtocol represents a network transport protocol for port mappings.
	// The zero value ("") means tcp.
	PortProtocol string

	// SELinuxLabel represents an SELinux volume labeling option.
	SELinuxLabel string

	// NetworkPort is a TCP/UDP port number. A valid port is greater than zero.
	NetworkPort uint16

	// VolumeMount represents a bind mount of a host path into the container.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
		SELinux       SELinuxLabel
	}

	// PortMapping publishes a container port on the host.
	PortMapping struct {
		HostPort      NetworkPort
		ContainerPort NetworkPort
		Protocol      PortProtocol
	}

	// InvalidVolumeMountError is returned when a VolumeMount has invalid fields.
	InvalidVolumeMountError struct {
		Value  VolumeMount
		Reason string
	}

	// InvalidPortMappingError is returned when a PortMapping has invalid fields.
	InvalidPortMappingError struct {
		Value  PortMapping
		Reason string
	}
)

// String returns the string representation of the NetworkPort.
func (p NetworkPort) String() string { return strconv.Itoa(int(p)) }

// Error implements the error interface.
func (e *InvalidVolumeMountError) Error() string {
	return fmt.Sprintf("invalid volume mount %q: %s", e.Value.String(), e.Reason)
}

// Unwrap returns ErrInvalidVolumeMount for errors.Is() compatibility.
func (e *InvalidVolumeMountError) Unwrap() error { return ErrInvalidVolumeMount }

// Error implements the error interface.
func (e *InvalidPortMappingError) Error() string {
	return fmt.Sprintf("invalid port mapping %q: %s", e.Value.String(), e.Reason)
}

// Unwrap returns ErrInvalidPortMapping for errors.Is() compatibility.
func (e *InvalidPortMappingError) Unwrap() error { return ErrInvalidPortMapping }

// Validate returns an error if either path is empty or the SELinux label is unknown.
func (v VolumeMount) Validate() error {
	switch {
	case strings.TrimSpace(v.HostPath) == "":
		return &InvalidVolumeMountError{Value: v, Reason: "host path must be non-empty"}
	case strings.TrimSpace(v.ContainerPath) == "":
		return &InvalidVolumeMountError{Value: v, Reason: "container path must be non-empty"}
	}
	switch v.SELinux {
	case SELinuxLabelNone, SELinuxLabelShared, SELinuxLabelPrivate:
		return nil
	default:
		return &InvalidVolumeMountError{Value: v, Reason: fmt.Sprintf("unknown SELinux label %q", v.SELinux)}
	}
}

// String returns the mount in "host:container[:options]" form, as accepted by -v.
func (v VolumeMount) String() string {
	var result strings.Builder
	result.WriteString(v.HostPath)
	result.WriteString(":")
	result.WriteString(v.ContainerPath)

	var options []string
	if v.ReadOnly {
		options = append(options, "ro")
	}
	if v.SELinux != "" {
		options = append(options, string(v.SELinux))
	}
	if len(options) > 0 {
		result.WriteString(":")
		result.WriteString(strings.Join(options, ","))
	}
	return result.String()
}

// Validate returns an error if a port is zero or the protocol is unknown.
func (p PortMapping) Validate() error {
	if p.HostPort == 0 || p.ContainerPort == 0 {
		return &InvalidPortMappingError{Value: p, Reason: "ports must be greater than zero"}
	}
	switch p.Protocol {
	case "", PortProtocolTCP, PortProtocolUDP:
		return nil
	default:
		return &InvalidPortMappingError{Value: p, Reason: fmt.Sprintf("unknown protocol %q (valid: tcp, udp)", p.Protocol)}
	}
}

// Proto returns the protocol, defaulting to tcp.
func (p PortMapping) Proto() PortProtocol {
	if p.Protocol == "" {
		return PortProtocolTCP
	}
	return p.Protocol
}

// String returns the mapping in "host:container[/udp]" form, as accepted by -p.
func (p PortMapping) String() string {
	result := fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort)
	if p.Proto() != PortProtocolTCP {
		result += "/" + string(p.Protocol)
	}
	return result
}
