// Copyright 2025-2026 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package saludo

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
)

// RuntimeInfo captures metadata about the environment the server runs in.
type RuntimeInfo struct {
	Platform       string
	ProjectID      string
	Labels         map[string]string
	ServiceContext map[string]string
}

// Attrs renders the runtime labels as a sorted "runtime" group suitable for
// a base logger. It returns nil when nothing was detected.
func (ri RuntimeInfo) Attrs() []slog.Attr {
	if ri.Platform == "" && len(ri.Labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ri.Labels))
	for k := range ri.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(keys)+2)
	if ri.Platform != "" {
		args = append(args, slog.String("platform", ri.Platform))
	}
	if ri.ProjectID != "" {
		args = append(args, slog.String("projectId", ri.ProjectID))
	}
	for _, k := range keys {
		args = append(args, slog.String(k, ri.Labels[k]))
	}
	return []slog.Attr{slog.Group("runtime", args...)}
}

var (
	runtimeInfo     RuntimeInfo
	runtimeInfoOnce sync.Once
)

// DetectRuntimeInfo inspects well-known environment variables and, when
// running on Google Cloud, the metadata server. Results are cached.
func DetectRuntimeInfo() RuntimeInfo {
	runtimeInfoOnce.Do(func() {
		runtimeInfo = detectRuntimeInfo(newMetadataLookup())
	})
	return runtimeInfo
}

// detectRuntimeInfo runs the platform detectors in order of specificity.
func detectRuntimeInfo(md metadataSource) RuntimeInfo {
	info := RuntimeInfo{
		ProjectID: normalizeProjectID(firstNonEmpty(
			trimmedEnv("GOOGLE_CLOUD_PROJECT"),
			trimmedEnv("GCLOUD_PROJECT"),
			trimmedEnv("GCP_PROJECT"),
		)),
	}

	switch {
	case detectCloudFunction(&info):
	case detectCloudRunService(&info):
	case detectAppEngine(&info):
	case detectKubernetes(&info, md):
	case detectComputeEngine(&info, md):
	}

	if info.ProjectID == "" && info.Platform != "" {
		if pid, ok := md.get("project/project-id"); ok {
			info.ProjectID = normalizeProjectID(pid)
		}
	}
	return info
}

// detectCloudFunction populates metadata when running within Cloud Functions.
func detectCloudFunction(info *RuntimeInfo) bool {
	service := trimmedEnv("K_SERVICE")
	target := trimmedEnv("FUNCTION_TARGET")
	if service == "" || target == "" {
		return false
	}

	info.Platform = "cloud_function"
	info.ServiceContext = map[string]string{"service": service}
	if revision := trimmedEnv("K_REVISION"); revision != "" {
		info.ServiceContext["version"] = revision
	}
	info.Labels = map[string]string{
		"function": service,
		"target":   target,
	}
	if region := firstNonEmpty(trimmedEnv("FUNCTION_REGION"), trimmedEnv("GOOGLE_CLOUD_REGION")); region != "" {
		info.Labels["region"] = region
	}
	return true
}

// detectCloudRunService populates metadata when running within Cloud Run.
func detectCloudRunService(info *RuntimeInfo) bool {
	service := trimmedEnv("K_SERVICE")
	revision := trimmedEnv("K_REVISION")
	if service == "" || revision == "" {
		return false
	}

	info.Platform = "cloud_run"
	info.ServiceContext = map[string]string{
		"service": service,
		"version": revision,
	}
	info.Labels = map[string]string{
		"service":  service,
		"revision": revision,
	}
	if region := firstNonEmpty(trimmedEnv("CLOUD_RUN_REGION"), trimmedEnv("GOOGLE_CLOUD_REGION")); region != "" {
		info.Labels["region"] = region
	}
	return true
}

// detectAppEngine populates metadata when running within App Engine.
func detectAppEngine(info *RuntimeInfo) bool {
	service := trimmedEnv("GAE_SERVICE")
	version := trimmedEnv("GAE_VERSION")
	if service == "" && version == "" {
		return false
	}

	info.Platform = "app_engine"
	info.ServiceContext = map[string]string{}
	info.Labels = map[string]string{}
	if service != "" {
		info.ServiceContext["service"] = service
		info.Labels["service"] = service
	}
	if version != "" {
		info.ServiceContext["version"] = version
		info.Labels["version"] = version
	}
	if info.ProjectID == "" {
		info.ProjectID = normalizeProjectID(trimmedEnv("GAE_APPLICATION"))
	}
	return true
}

// detectKubernetes populates metadata when running inside a Kubernetes pod.
func detectKubernetes(info *RuntimeInfo, md metadataSource) bool {
	if trimmedEnv("KUBERNETES_SERVICE_HOST") == "" {
		return false
	}

	info.Platform = "kubernetes"
	labels := map[string]string{}
	if cluster, ok := md.get("instance/attributes/cluster-name"); ok {
		labels["cluster"] = cluster
	}
	if ns := firstNonEmpty(readNamespace(), trimmedEnv("POD_NAMESPACE")); ns != "" {
		labels["namespace"] = ns
	}
	if pod := firstNonEmpty(trimmedEnv("POD_NAME"), trimmedEnv("HOSTNAME")); pod != "" {
		labels["pod"] = pod
	}
	info.Labels = labels
	return true
}

// detectComputeEngine populates metadata when running on a GCE instance.
func detectComputeEngine(info *RuntimeInfo, md metadataSource) bool {
	if !md.onGCE() {
		return false
	}
	instanceID, ok := md.get("instance/id")
	if !ok {
		return false
	}

	info.Platform = "compute_engine"
	info.Labels = map[string]string{"instanceId": instanceID}
	if zone, ok := md.get("instance/zone"); ok {
		if idx := strings.LastIndex(zone, "/"); idx >= 0 {
			zone = zone[idx+1:]
		}
		info.Labels["zone"] = zone
	}
	return true
}

// trimmedEnv reads an environment variable and trims surrounding whitespace.
func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// firstNonEmpty returns the first non-empty string after trimming whitespace.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// normalizeProjectID strips resource prefixes and App Engine's partition marker.
func normalizeProjectID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "projects/")
	if _, after, ok := strings.Cut(id, "~"); ok {
		id = after
	}
	return strings.TrimPrefix(id, "_")
}

// readNamespace reads the Kubernetes namespace from the service account mount.
func readNamespace() string {
	data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// metadataSource abstracts the GCE metadata server for tests.
type metadataSource interface {
	onGCE() bool
	get(path string) (string, bool)
}

type metadataLookup struct {
	client  *metadata.Client
	timeout time.Duration
	cache   map[string]string
	gceOnce sync.Once
	gce     bool
}

// newMetadataLookup constructs a cached metadata lookup with a short timeout
// so startup off-cloud is not delayed.
func newMetadataLookup() *metadataLookup {
	return &metadataLookup{
		client:  metadata.NewClient(nil),
		timeout: 300 * time.Millisecond,
		cache:   make(map[string]string),
	}
}

// onGCE reports whether the metadata server is reachable.
func (l *metadataLookup) onGCE() bool {
	l.gceOnce.Do(func() {
		l.gce = metadata.OnGCE()
	})
	return l.gce
}

// get fetches and caches a metadata value; misses are cached as empty.
func (l *metadataLookup) get(path string) (string, bool) {
	if v, ok := l.cache[path]; ok {
		return v, v != ""
	}
	if !l.onGCE() {
		l.cache[path] = ""
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	v, err := l.client.GetWithContext(ctx, path)
	if err != nil {
		v = ""
	}
	v = strings.TrimSpace(v)
	l.cache[path] = v
	return v, v != ""
}
