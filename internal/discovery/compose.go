package discovery

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

const descriptionLabel = "proxy.description"

// Discoverer produces the proxy targets for one check cycle. It never fails:
// problems are logged and yield an empty slice.
type Discoverer interface {
	Discover(ctx context.Context) []proxy.Target
}

// ComposeDiscoverer reads targets from the services of a compose file that
// are built locally and publish the SOCKS5 container port.
type ComposeDiscoverer struct {
	path          string
	containerPort string
	logger        *slog.Logger
}

type composeFile struct {
	Services yaml.Node `yaml:"services"`
}

type composeService struct {
	Build         yaml.Node   `yaml:"build"`
	Ports         []yaml.Node `yaml:"ports"`
	Hostname      string      `yaml:"hostname"`
	ContainerName string      `yaml:"container_name"`
	Labels        yaml.Node   `yaml:"labels"`
}

// NewComposeDiscoverer returns a discoverer for the compose file at path.
// containerPort is the port the proxies listen on inside their containers.
func NewComposeDiscoverer(path string, containerPort int, logger *slog.Logger) *ComposeDiscoverer {
	return &ComposeDiscoverer{
		path:          path,
		containerPort: strconv.Itoa(containerPort),
		logger:        logger,
	}
}

// Discover returns the targets in the order their services appear in the file.
func (d *ComposeDiscoverer) Discover(ctx context.Context) []proxy.Target {
	content, err := os.ReadFile(d.path)
	if err != nil {
		d.logger.Error("Failed to read compose file",
			slog.String("path", d.path),
			slog.Any("err", err))
		return []proxy.Target{}
	}

	var file composeFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		d.logger.Error("Failed to parse compose file",
			slog.String("path", d.path),
			slog.Any("err", err))
		return []proxy.Target{}
	}

	if file.Services.Kind != yaml.MappingNode {
		d.logger.Error("Compose file has no services mapping", slog.String("path", d.path))
		return []proxy.Target{}
	}

	targets := []proxy.Target{}
	nodes := file.Services.Content
	for i := 0; i+1 < len(nodes); i += 2 {
		name := nodes[i].Value

		var svc composeService
		if err := nodes[i+1].Decode(&svc); err != nil {
			d.logger.Warn("Skipping malformed service",
				slog.String("service", name),
				slog.Any("err", err))
			continue
		}

		target, ok := d.targetFor(name, svc)
		if !ok {
			continue
		}
		targets = append(targets, target)
	}

	return targets
}

func (d *ComposeDiscoverer) targetFor(name string, svc composeService) (proxy.Target, bool) {
	if !present(svc.Build) || len(svc.Ports) == 0 {
		return proxy.Target{}, false
	}

	mapping, found := "", false
	for _, p := range svc.Ports {
		if p.Kind == yaml.ScalarNode && strings.HasSuffix(p.Value, ":"+d.containerPort) {
			mapping, found = p.Value, true
			break
		}
	}
	if !found {
		return proxy.Target{}, false
	}

	hostPort, ok := hostPortOf(mapping)
	if !ok {
		d.logger.Warn("Skipping service with unexpected port mapping",
			slog.String("service", name),
			slog.String("mapping", mapping))
		return proxy.Target{}, false
	}

	description := svc.Hostname
	if description == "" {
		description = name
	}
	if label, ok := labelValue(svc.Labels, descriptionLabel); ok {
		description = label
	}

	containerName := svc.ContainerName
	if containerName == "" {
		containerName = name
	}

	return proxy.Target{
		Port:          hostPort,
		ContainerName: containerName,
		Description:   description,
	}, true
}

// hostPortOf extracts the published port from HOST:CONTAINER or
// IP:HOST:CONTAINER.
func hostPortOf(mapping string) (int, bool) {
	parts := strings.Split(mapping, ":")

	var raw string
	switch len(parts) {
	case 3:
		raw = parts[1]
	case 2:
		raw = parts[0]
	default:
		return 0, false
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

// labelValue looks key up in compose labels given either as a list of
// key=value strings or as a mapping.
func labelValue(labels yaml.Node, key string) (string, bool) {
	switch labels.Kind {
	case yaml.SequenceNode:
		for _, l := range labels.Content {
			if v, ok := strings.CutPrefix(l.Value, key+"="); ok {
				return v, true
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(labels.Content); i += 2 {
			if labels.Content[i].Value == key {
				return labels.Content[i+1].Value, true
			}
		}
	}
	return "", false
}

func present(n yaml.Node) bool {
	switch n.Kind {
	case 0:
		return false
	case yaml.ScalarNode:
		return n.Tag != "!!null" && n.Value != ""
	default:
		return true
	}
}
