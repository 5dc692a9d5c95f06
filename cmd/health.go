package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tagforge/internal/config"
)

// HealthStatus represents the health check response.
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
	Overall   bool             `json:"overall"`
}

// Check represents an individual health check result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Healthy bool   `json:"healthy"`
}

func (s *HealthStatus) record(name string, healthy bool, message string) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
		s.Overall = false
		s.Status = "unhealthy"
	}
	s.Checks[name] = Check{Status: status, Message: message, Healthy: healthy}
}

func newHealthCommand(a *app) *cobra.Command {
	var (
		timeout  time.Duration
		verbose  bool
		noServer bool
	)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check the preview server and the project folders",
		Long: `Performs health checks including:
- Preview server responsiveness (GET /health)
- Source directory access
- Components folder access

This command is meant for container health and readiness checks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.load(cmd, serverBindings)
			if err != nil {
				return err
			}

			status := &HealthStatus{
				Status:    "healthy",
				Timestamp: time.Now(),
				Checks:    make(map[string]Check),
				Overall:   true,
			}
			if !noServer {
				checkHTTPServer(status, cfg, timeout)
			}
			checkDirectory(status, "source_dir", cfg.Build.Src)
			checkDirectory(status, "components_dir", cfg.Components.Folder)

			writeHealth(cmd.OutOrStdout(), status, verbose)
			if !status.Overall {
				return errors.New("health checks failed")
			}

			return nil
		},
	}

	AddStandardFlags(healthCmd, "server")
	healthCmd.Flags().DurationVarP(&timeout, "timeout", "t", 3*time.Second, "Timeout for health checks")
	healthCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose health check output")
	healthCmd.Flags().BoolVar(&noServer, "no-server", false, "Skip the preview server check")

	return healthCmd
}

func writeHealth(w io.Writer, status *HealthStatus, verbose bool) {
	if verbose {
		output, _ := json.MarshalIndent(status, "", "  ")
		fmt.Fprintln(w, string(output))

		return
	}

	if status.Overall {
		fmt.Fprintln(w, "✅ All health checks passed")

		return
	}

	fmt.Fprintln(w, "❌ Health checks failed")
	names := make([]string, 0, len(status.Checks))
	for name := range status.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if check := status.Checks[name]; !check.Healthy {
			fmt.Fprintf(w, "  - %s: %s\n", name, check.Message)
		}
	}
}

// checkHTTPServer verifies the preview server is responding.
func checkHTTPServer(status *HealthStatus, cfg *config.Config, timeout time.Duration) {
	client := &http.Client{Timeout: timeout}

	resp, err := client.Get("http://" + cfg.Address() + "/health")
	if err != nil {
		status.record("http_server", false, fmt.Sprintf("Failed to connect to server: %v", err))

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status.record("http_server", false, fmt.Sprintf("Server returned status %d", resp.StatusCode))

		return
	}

	var body struct {
		Status string `json:"status"`
		Errors int    `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		status.record("http_server", false, fmt.Sprintf("Unreadable health response: %v", err))

		return
	}
	if body.Status != "healthy" {
		status.record("http_server", false, fmt.Sprintf("Server is %s with %d failing document(s)", body.Status, body.Errors))

		return
	}

	status.record("http_server", true, "HTTP server responding")
}

func checkDirectory(status *HealthStatus, name, dir string) {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		status.record(name, false, fmt.Sprintf("Cannot access %s: %v", dir, err))
	case !info.IsDir():
		status.record(name, false, dir+" is not a directory")
	default:
		if _, err := os.ReadDir(dir); err != nil {
			status.record(name, false, fmt.Sprintf("Cannot read %s: %v", dir, err))

			return
		}
		status.record(name, true, dir+" is readable")
	}
}
