package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"media-downloader/internal/config"
	"media-downloader/internal/diagnostics"
	"media-downloader/internal/domain"
)

const (
	installCommandTimeout = 45 * time.Minute
	engineInstallTimeout  = 10 * time.Minute
)

type installOption struct {
	manager  string
	commands [][]string
}

// packageSpec names one tool in each package manager's catalogue.
type packageSpec struct {
	tool     string
	wingetID string
	generic  string
}

var (
	ffmpegPackage = packageSpec{tool: diagnostics.ToolFFmpeg, wingetID: "Gyan.FFmpeg", generic: "ffmpeg"}
	ytdlpPackage  = packageSpec{tool: diagnostics.ToolYTDLP, wingetID: "yt-dlp.yt-dlp", generic: "yt-dlp"}
)

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	settingsChanged := false
	var fixErr error

	a.log.Info("applying diagnostic fix", "item", id)
	switch id {
	case diagnostics.ItemFFmpeg:
		fixErr = installPackage(ffmpegPackage, goruntime.GOOS)
		if fixErr == nil && settings.FFmpegPath == "" {
			settings.FFmpegPath = diagnostics.ToolFFmpeg
			settingsChanged = true
		}
	case diagnostics.ItemYTDLP:
		settings, settingsChanged, fixErr = a.installOrFixYTDLP(settings)
	case diagnostics.ItemOutputDir:
		settings, settingsChanged, fixErr = installOrFixOutputDir(settings)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	if settingsChanged {
		if saveErr := a.Store.Save(settings); saveErr != nil {
			report := a.refreshDiagnosticsFromSettings(settings)
			return report, fmt.Errorf("save settings after fix: %w", saveErr)
		}
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		a.log.Warn("diagnostic fix failed", "item", id, "error", fixErr)
		return report, fixErr
	}
	return report, nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings)
	}
	return a.Diagnostics
}

// installOrFixYTDLP fetches the release binary and pins its path in settings.
// When the download fails the OS package manager is tried instead.
func (a *App) installOrFixYTDLP(settings domain.Settings) (domain.Settings, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), engineInstallTimeout)
	defer cancel()

	path, installErr := a.installYTDLP(ctx)
	if installErr == nil {
		changed := settings.YTDLPPath != path
		settings.YTDLPPath = path
		return settings, changed, nil
	}
	a.log.Warn("yt-dlp download failed, trying package manager", "error", installErr)

	if err := installPackage(ytdlpPackage, goruntime.GOOS); err != nil {
		return settings, false, fmt.Errorf("install yt-dlp: %v | package manager: %w", installErr, err)
	}
	changed := settings.YTDLPPath != ""
	settings.YTDLPPath = ""
	return settings, changed, nil
}

// installOptions lists package manager commands for pkg on goos, in preference order.
func installOptions(pkg packageSpec, goos string) []installOption {
	switch goos {
	case "windows":
		return []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", pkg.wingetID, "--exact", "--accept-source-agreements", "--accept-package-agreements"},
				},
			},
			{manager: "choco", commands: [][]string{{"choco", "install", pkg.generic, "-y"}}},
			{manager: "scoop", commands: [][]string{{"scoop", "install", pkg.generic}}},
		}
	case "darwin":
		return []installOption{
			{manager: "brew", commands: [][]string{{"brew", "install", pkg.generic}}},
		}
	default:
		return []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", pkg.generic},
				},
			},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", pkg.generic}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-Sy", "--noconfirm", pkg.generic}}},
			{manager: "zypper", commands: [][]string{{"zypper", "install", "-y", pkg.generic}}},
			{manager: "brew", commands: [][]string{{"brew", "install", pkg.generic}}},
		}
	}
}

func installPackage(pkg packageSpec, goos string) error {
	if err := runFirstSuccessfulInstall(installOptions(pkg, goos)); err != nil {
		return fmt.Errorf("install %s: %w", pkg.tool, err)
	}
	if err := requireToolsOnPath(pkg.tool); err != nil {
		return fmt.Errorf("verify %s on PATH: %w", pkg.tool, err)
	}
	return nil
}

func runFirstSuccessfulInstall(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", goruntime.GOOS)
	}

	errorsByManager := make([]string, 0, len(options))
	atLeastOneManager := false

	for _, option := range options {
		if !commandAvailable(option.manager) {
			continue
		}
		atLeastOneManager = true
		err := runInstallCommands(option.commands)
		if err == nil {
			return nil
		}
		errorsByManager = append(errorsByManager, fmt.Sprintf("%s: %v", option.manager, err))
	}

	if !atLeastOneManager {
		return fmt.Errorf("no supported package manager found for %s", goruntime.GOOS)
	}
	return errors.New(strings.Join(errorsByManager, " | "))
}

func runInstallCommands(commands [][]string) error {
	for _, command := range commands {
		if err := runCommandWithPossibleElevation(command); err != nil {
			return err
		}
	}
	return nil
}

func runCommandWithPossibleElevation(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := elevationCandidates(command, goruntime.GOOS, commandAvailable)
	attemptErrors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		err := runCommand(candidate[0], candidate[1:]...)
		if err == nil {
			return nil
		}
		attemptErrors = append(attemptErrors, err.Error())
	}

	return errors.New(strings.Join(attemptErrors, " | "))
}

// elevationCandidates returns command followed by pkexec/sudo variants on Linux.
func elevationCandidates(command []string, goos string, available func(string) bool) [][]string {
	candidates := [][]string{command}
	if goos != "linux" || !requiresElevation(command[0]) {
		return candidates
	}
	if available("pkexec") {
		candidates = append(candidates, append([]string{"pkexec"}, command...))
	}
	if available("sudo") {
		candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
	}
	return candidates
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = trimmed[:500] + "..."
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	parts := append([]string{name}, args...)
	return strings.Join(parts, " ")
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func requireToolsOnPath(names ...string) error {
	missing := make([]string, 0, len(names))
	for _, name := range names {
		if _, err := exec.LookPath(name); err != nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

// installOrFixOutputDir creates the last directory, or the default one when none was chosen.
func installOrFixOutputDir(settings domain.Settings) (domain.Settings, bool, error) {
	outputDir := strings.TrimSpace(settings.LastDirectory)
	changed := false
	if outputDir == "" {
		outputDir = config.DefaultDownloadDir()
		settings.LastDirectory = outputDir
		changed = true
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return settings, changed, fmt.Errorf("create download directory %s: %w", outputDir, err)
	}

	return settings, changed, nil
}
