// Package tray provides the system tray menu of the handraw service.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/VicFreyre/handraw-pipe/internal/canvas"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onEraser func(on bool)
	onColor  func(hex string)
	onClear  func()
	onExport func()
	onOpen   func()
	onQuit   func()
	enabled  bool
	eraser   bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuEraser *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance with drawing enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback called when drawing is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnEraser sets the callback called when the eraser is switched.
func (t *Tray) OnEraser(fn func(on bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEraser = fn
}

// OnColor sets the callback called when a palette color is picked.
func (t *Tray) OnColor(fn func(hex string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onColor = fn
}

// OnClear sets the callback called when the canvas should be cleared.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnExport sets the callback called when an export is requested.
func (t *Tray) OnExport(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExport = fn
}

// OnOpen sets the callback called when the web UI should be opened.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("handraw")
	systray.SetTooltip("handraw: pinch to draw")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume drawing")
	t.menuEraser = systray.AddMenuItemCheckbox("Eraser", "Switch between brush and eraser", t.eraser)
	t.menuStatus = systray.AddMenuItem("Idle", "Drawing state")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuColor := systray.AddMenuItem("Color", "Brush color")
	for _, hex := range canvas.Palette {
		item := menuColor.AddSubMenuItem(hex, "Use "+hex)
		go func(hex string) {
			for range item.ClickedCh {
				t.handleColor(hex)
			}
		}(hex)
	}

	menuClear := systray.AddMenuItem("Clear Canvas", "Erase everything")
	menuExport := systray.AddMenuItem("Export PNG", "Save the canvas to the export folder")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the drawing page")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handraw")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuEraser.ClickedCh:
				t.handleEraser()
			case <-menuClear.ClickedCh:
				t.fire(&t.onClear)
			case <-menuExport.ClickedCh:
				t.fire(&t.onExport)
			case <-menuOpen.ClickedCh:
				t.fire(&t.onOpen)
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Drawing On"
	}
	return "○ Drawing Paused"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleEraser handles the eraser checkbox click.
func (t *Tray) handleEraser() {
	t.mu.Lock()
	t.eraser = !t.eraser
	on := t.eraser

	if t.menuEraser != nil {
		if on {
			t.menuEraser.Check()
		} else {
			t.menuEraser.Uncheck()
		}
	}

	callback := t.onEraser
	t.mu.Unlock()

	if callback != nil {
		callback(on)
	}
}

func (t *Tray) handleColor(hex string) {
	t.mu.RLock()
	callback := t.onColor
	t.mu.RUnlock()

	if callback != nil {
		callback(hex)
	}
}

// fire runs the callback stored in *slot, read under the lock.
func (t *Tray) fire(slot *func()) {
	t.mu.RLock()
	callback := *slot
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the drawing state line in the menu.
func (t *Tray) SetStatus(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

// SetEraser syncs the eraser checkbox with a change made elsewhere.
func (t *Tray) SetEraser(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.eraser = on
	if t.menuEraser != nil {
		if on {
			t.menuEraser.Check()
		} else {
			t.menuEraser.Uncheck()
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
