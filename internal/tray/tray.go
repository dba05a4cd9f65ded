package tray

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/getlantern/systray"
	"github.com/petems/rolling-sampler/internal/audio"
	"github.com/petems/rolling-sampler/internal/logging"
	"github.com/petems/rolling-sampler/internal/recorder"
	"github.com/rs/zerolog"
)

const (
	refreshInterval = 500 * time.Millisecond
	sparklineWidth  = 32
	plotStep        = 64
)

// Controller is the part of the recorder the menu drives.
type Controller interface {
	ToggleGrab() (string, error)
	RetrySave(dir string) (string, error)
	PendingCount() int
	IsGrabbing() bool
	State() recorder.State
	Format() audio.Format
	SetMonitoring(enabled bool) error
	IsMonitoring() bool
	ListInputDevices() ([]audio.Device, error)
	ListOutputDevices() ([]audio.Device, error)
	InputDevice() audio.Device
	OutputDevice() audio.Device
	SwitchInputDevice(id string) error
	SwitchOutputDevice(id string) error
	ResizeWindow(seconds int) error
	WindowSeconds() int
	MaxWindowSeconds() int
	SaveDir() string
	SetSaveDir(dir string) error
	LastSaved() string
	StreamErrors() uint64
	MonitorStats() recorder.MonitorStats
	PlotSamples(step int) []float32
}

type UI struct {
	rec     Controller
	version string
	commit  string
	log     zerolog.Logger
	onQuit  func()

	mu     sync.Mutex
	status string
	ready  bool // native tray is up; status changes before this are replayed in onReady

	// Menu items
	mGrab      *systray.MenuItem
	mRetry     *systray.MenuItem
	mWave      *systray.MenuItem
	mMonitor   *systray.MenuItem
	mInputs    *systray.MenuItem
	mOutputs   *systray.MenuItem
	mWindow    *systray.MenuItem
	mSaveDir   *systray.MenuItem
	mOpenDir   *systray.MenuItem
	inputItems map[string]*systray.MenuItem
	outItems   map[string]*systray.MenuItem
}

// Status update methods for the recorder to call. They only touch the tray.
func (u *UI) SetIdle()      { u.updateStatus("idle") }
func (u *UI) SetRecording() { u.updateStatus("recording") }
func (u *UI) SetGrabbing()  { u.updateStatus("grabbing") }
func (u *UI) SetSaving()    { u.updateStatus("saving") }
func (u *UI) SetError()     { u.updateStatus("error") }

// New builds the tray. onQuit runs when the user picks Quit.
func New(rec Controller, log zerolog.Logger, version, commit string, onQuit func()) *UI {
	return &UI{
		rec:     rec,
		version: version,
		commit:  commit,
		log:     log,
		onQuit:  onQuit,
		status:  "idle",
	}
}

// SetController sets the recorder reference (for circular dependency resolution)
func (u *UI) SetController(rec Controller) {
	u.rec = rec
}

// Run blocks on the systray event loop until Quit or ctx is done.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		systray.Quit()
	}()
	systray.Run(func() { u.onReady(ctx) }, u.onExit)
	return nil
}

func (u *UI) onReady(ctx context.Context) {
	u.mu.Lock()
	u.ready = true
	u.mu.Unlock()

	u.updateStatus(u.currentStatus())
	systray.SetTooltip("Rolling sampler")

	u.mGrab = systray.AddMenuItem(grabTitle(u.currentStatus() == "grabbing"), "Freeze the window and keep recording")
	u.mRetry = systray.AddMenuItem("Retry Save", "Save the recording that failed to save")
	u.mRetry.Hide()
	u.mWave = systray.AddMenuItem("", "Recent audio")
	u.mWave.Disable()
	systray.AddSeparator()

	u.mMonitor = systray.AddMenuItemCheckbox("Monitor Input", "Play the input through the output device", u.rec.IsMonitoring())
	u.mInputs = systray.AddMenuItem("Input", "Select capture device")
	u.inputItems = u.buildDeviceMenu(u.mInputs, u.rec.ListInputDevices, u.rec.InputDevice().ID, u.rec.SwitchInputDevice)
	u.mOutputs = systray.AddMenuItem("Output", "Select monitoring device")
	u.outItems = u.buildDeviceMenu(u.mOutputs, u.rec.ListOutputDevices, u.rec.OutputDevice().ID, u.rec.SwitchOutputDevice)
	u.mWindow = systray.AddMenuItem(windowTitle(u.rec.WindowSeconds()), "Length of the rolling window")
	u.buildWindowMenu()

	systray.AddSeparator()
	u.mSaveDir = systray.AddMenuItem("Save Folder", u.rec.SaveDir())
	u.mOpenDir = u.mSaveDir.AddSubMenuItem("Open Save Folder", "Show saved grabs")
	u.buildSaveDirMenu()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About Rolling Sampler")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
	go u.refresh(ctx)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mGrab.ClickedCh:
			u.toggleGrab()
		case <-u.mRetry.ClickedCh:
			u.retrySave()
		case <-u.mMonitor.ClickedCh:
			u.toggleMonitoring()
		case <-u.mOpenDir.ClickedCh:
			u.open(u.rec.SaveDir())
		case <-mLogs.ClickedCh:
			u.open(logging.Path())
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			if u.onQuit != nil {
				u.onQuit()
			}
			systray.Quit()
			return
		}
	}
}

// refresh redraws the waveform, the tooltip and the retry item.
func (u *UI) refresh(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		samples := u.rec.PlotSamples(plotStep)
		line := sparkline(samples, sparklineWidth)
		u.mWave.SetTitle(line)

		h := u.health()
		systray.SetTooltip(tooltip(h, line))

		if h.pending > 0 {
			u.mRetry.SetTitle(retryTitle(h.pending))
			u.mRetry.Show()
		} else {
			u.mRetry.Hide()
		}
	}
}

// health is the recorder state shown in the tooltip.
type health struct {
	state        recorder.State
	format       audio.Format
	window       int
	pending      int
	lastSaved    string
	streamErrors uint64
	monitoring   bool
	monitor      recorder.MonitorStats
}

func (u *UI) health() health {
	h := health{
		state:        u.rec.State(),
		format:       u.rec.Format(),
		window:       u.rec.WindowSeconds(),
		pending:      u.rec.PendingCount(),
		lastSaved:    u.rec.LastSaved(),
		streamErrors: u.rec.StreamErrors(),
		monitoring:   u.rec.IsMonitoring(),
	}
	if h.monitoring {
		h.monitor = u.rec.MonitorStats()
	}
	return h
}

func tooltip(h health, line string) string {
	head := fmt.Sprintf("Rolling sampler: %s, %ds window", h.state, h.window)
	if h.format.SampleRate > 0 {
		head += fmt.Sprintf(" (%s)", h.format)
	}
	lines := []string{head, line}
	if h.lastSaved != "" {
		lines = append(lines, "Last saved: "+filepath.Base(h.lastSaved))
	}
	if h.pending > 0 {
		lines = append(lines, fmt.Sprintf("Unsaved recordings: %d", h.pending))
	}
	if h.streamErrors > 0 {
		lines = append(lines, fmt.Sprintf("Stream errors: %d", h.streamErrors))
	}
	if h.monitoring {
		mode := "pass-through"
		if h.monitor.Resampling {
			mode = fmt.Sprintf("resampling, %d chunks, %d failed", h.monitor.Conversions, h.monitor.Failures)
		}
		lines = append(lines, fmt.Sprintf("Monitor: %s, %d dropped", mode, h.monitor.Dropped))
	}
	return strings.Join(lines, "\n")
}

func retryTitle(pending int) string {
	if pending == 1 {
		return "Retry Save"
	}
	return fmt.Sprintf("Retry Save (%d)", pending)
}

func (u *UI) toggleGrab() {
	path, err := u.rec.ToggleGrab()
	if err != nil {
		u.log.Error().Err(err).Msg("Grab failed")
		return
	}
	if path != "" {
		u.log.Info().Str("path", path).Msg("Grab saved")
	}
}

func (u *UI) retrySave() {
	path, err := u.rec.RetrySave(u.rec.SaveDir())
	if err != nil {
		u.log.Error().Err(err).Int("pending", u.rec.PendingCount()).Msg("Retry failed")
		return
	}
	u.mRetry.Hide()
	u.log.Info().Str("path", path).Msg("Grabs saved on retry")
}

func (u *UI) toggleMonitoring() {
	enable := !u.rec.IsMonitoring()
	if err := u.rec.SetMonitoring(enable); err != nil {
		u.log.Error().Err(err).Bool("enable", enable).Msg("Failed to change monitoring")
		return
	}
	if enable {
		u.mMonitor.Check()
	} else {
		u.mMonitor.Uncheck()
	}
	// Monitoring may have fallen back to the default output.
	checkOnly(u.outItems, u.rec.OutputDevice().ID)
}

func (u *UI) buildDeviceMenu(parent *systray.MenuItem, list func() ([]audio.Device, error), current string, choose func(string) error) map[string]*systray.MenuItem {
	items := make(map[string]*systray.MenuItem)

	devices, err := list()
	if err != nil {
		u.log.Error().Err(err).Msg("Failed to list audio devices")
		return items
	}

	for _, dev := range devices {
		item := parent.AddSubMenuItemCheckbox(dev.String(), dev.NativeFormat().String(), dev.ID == current)
		items[dev.ID] = item

		go func(dev audio.Device, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := choose(dev.ID); err != nil {
					u.log.Error().Err(err).Str("device", dev.Name).Msg("Failed to change audio device")
					continue
				}
				checkOnly(items, dev.ID)
				u.log.Info().Str("device", dev.Name).Msg("Changed audio device")
			}
		}(dev, item)
	}
	return items
}

func (u *UI) buildWindowMenu() {
	items := make(map[int]*systray.MenuItem)
	current := u.rec.WindowSeconds()

	for _, secs := range windowPresets(u.rec.MaxWindowSeconds()) {
		item := u.mWindow.AddSubMenuItemCheckbox(fmt.Sprintf("%d s", secs), "", secs == current)
		items[secs] = item

		go func(secs int, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.rec.ResizeWindow(secs); err != nil {
					u.log.Error().Err(err).Int("seconds", secs).Msg("Failed to resize window")
					continue
				}
				for s, itm := range items {
					if s == secs {
						itm.Check()
					} else {
						itm.Uncheck()
					}
				}
				u.mWindow.SetTitle(windowTitle(secs))
			}
		}(secs, item)
	}
}

// buildSaveDirMenu offers a few common folders plus the current one.
func (u *UI) buildSaveDirMenu() {
	home, err := os.UserHomeDir()
	if err != nil {
		u.log.Warn().Err(err).Msg("No home directory, save folder presets disabled")
		return
	}

	current := u.rec.SaveDir()
	items := make(map[string]*systray.MenuItem)
	for _, dir := range saveDirPresets(home, current) {
		item := u.mSaveDir.AddSubMenuItemCheckbox(dir, "Save grabs here", dir == current)
		items[dir] = item

		go func(dir string, menuItem *systray.MenuItem) {
			for range menuItem.ClickedCh {
				if err := u.rec.SetSaveDir(dir); err != nil {
					u.log.Error().Err(err).Str("dir", dir).Msg("Failed to change save folder")
					continue
				}
				checkOnly(items, dir)
				u.mSaveDir.SetTooltip(dir)
				u.log.Info().Str("dir", dir).Msg("Changed save folder")
			}
		}(dir, item)
	}
}

// saveDirPresets lists the folders offered in the menu, current included.
func saveDirPresets(home, current string) []string {
	dirs := []string{
		filepath.Join(home, "Desktop"),
		filepath.Join(home, "Music"),
		filepath.Join(home, "Documents"),
	}
	if current != "" && !slices.Contains(dirs, current) {
		dirs = append(dirs, current)
	}
	return dirs
}

func checkOnly(items map[string]*systray.MenuItem, id string) {
	for itemID, item := range items {
		if itemID == id {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (u *UI) open(path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		u.log.Error().Err(err).Str("path", path).Msg("Failed to open")
		return
	}
	go cmd.Wait()
}

func (u *UI) showAbout() {
	u.log.Info().Str("version", u.version).Str("commit", u.commit).Msg("Rolling Sampler")
	if u.mSaveDir != nil {
		u.mSaveDir.SetTooltip(u.rec.SaveDir())
	}
}

func (u *UI) onExit() {
	u.mu.Lock()
	u.ready = false
	u.mu.Unlock()
	u.log.Debug().Msg("Tray exited")
}

func (u *UI) currentStatus() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// updateStatus sets the tray title with the status indicator
func (u *UI) updateStatus(status string) {
	u.mu.Lock()
	u.status = status
	ready := u.ready
	u.mu.Unlock()

	if !ready {
		return
	}
	systray.SetTitle(fmt.Sprintf("🎙 %s", emojiForStatus(status)))
	if u.mGrab != nil {
		u.mGrab.SetTitle(grabTitle(status == "grabbing"))
	}
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "grabbing":
		return "🔴" // Red - grab in progress
	case "saving":
		return "🟡" // Yellow - writing file
	case "recording":
		return "🟢" // Green - rolling window live
	case "error":
		return "⚪️" // White - error
	default:
		return "⚫️" // Idle - no capture
	}
}

func grabTitle(grabbing bool) string {
	if grabbing {
		return "Stop Grab and Save"
	}
	return "Start Grab"
}

func windowTitle(seconds int) string {
	return fmt.Sprintf("Window: %d s", seconds)
}

// windowPresets returns the selectable window lengths up to limit.
func windowPresets(limit int) []int {
	var out []int
	for _, s := range []int{1, 2, 5, 10, 15, 30, 45, 60} {
		if s <= limit {
			out = append(out, s)
		}
	}
	if len(out) == 0 || out[len(out)-1] != limit {
		out = append(out, limit)
	}
	return out
}

var bars = []rune("▁▂▃▄▅▆▇█")

// sparkline renders the peak level of width equal slices of samples.
func sparkline(samples []float32, width int) string {
	if width <= 0 {
		return ""
	}
	line := make([]rune, width)
	for i := range line {
		line[i] = bars[0]
	}
	if len(samples) == 0 {
		return string(line)
	}

	for i := 0; i < width; i++ {
		from := i * len(samples) / width
		to := (i + 1) * len(samples) / width
		var peak float32
		for _, s := range samples[from:to] {
			if s < 0 {
				s = -s
			}
			peak = max(peak, s)
		}
		level := int(min(peak, 1) * float32(len(bars)-1))
		line[i] = bars[level]
	}
	return string(line)
}
