//go:build windows

package overlay

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"syscall"
	"time"
	"unsafe"

	"github.com/lxn/win"

	"im2any/src/screenshot"
)

// The overlay is a topmost layered popup covering the whole virtual screen,
// dimmed so the desktop shows through. A drag draws the rubber band; release
// commits it, Escape or a sub-threshold release cancels.

const (
	minSelectionSpan = 5
	overlayAlpha     = 160

	keyPollTimerID    = 1
	keyPollIntervalMs = 25

	// LWA_ALPHA for SetLayeredWindowAttributes; not exported by lxn/win.
	lwaAlpha = 0x00000002
)

var (
	user32DLL                    = syscall.NewLazyDLL("user32.dll")
	procAllowSetForegroundWindow = user32DLL.NewProc("AllowSetForegroundWindow")
	procGetAsyncKeyState         = user32DLL.NewProc("GetAsyncKeyState")
	procSetLayeredWindowAttrs    = user32DLL.NewProc("SetLayeredWindowAttributes")
)

// wndProc callbacks cannot carry a closure, so the in-flight selection keeps
// its state here. Only one selection runs at a time.
var (
	overlayHwnd      win.HWND
	selecting        bool
	startX, startY   int32
	endX, endY       int32
	virtualX         int32
	virtualY         int32
	crossCursor      win.HCURSOR
	escapeWasDown    bool
	selectionResult chan screenshot.Region
	wndProcPtr      = syscall.NewCallback(overlayWndProc)
)

type windowsSelector struct{}

func newPlatformSelector() Selector { return windowsSelector{} }

func (windowsSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	if err := ctx.Err(); err != nil {
		return screenshot.Region{}, true, nil
	}

	// Win32 windows are bound to the thread that created them.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	bounds, err := screenshot.VirtualBounds()
	if err != nil {
		return screenshot.Region{}, false, err
	}
	vx := int32(bounds.Min.X)
	vy := int32(bounds.Min.Y)
	vw := int32(bounds.Dx())
	vh := int32(bounds.Dy())
	log.Printf("Overlay: virtual screen x=%d y=%d w=%d h=%d", vx, vy, vw, vh)

	virtualX = vx
	virtualY = vy
	selecting = false
	escapeWasDown = false
	selectionResult = make(chan screenshot.Region, 1)

	crossCursor = win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS))

	// Unique class name per invocation avoids stale-class conflicts.
	classNameStr := fmt.Sprintf("Im2AnyOverlay_%d", time.Now().UnixNano())
	className := syscall.StringToUTF16Ptr(classNameStr)
	wndClass := win.WNDCLASSEX{
		CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
		Style:         win.CS_HREDRAW | win.CS_VREDRAW,
		LpfnWndProc:   wndProcPtr,
		HInstance:     win.GetModuleHandle(nil),
		HCursor:       crossCursor,
		HbrBackground: win.HBRUSH(win.GetStockObject(win.BLACK_BRUSH)),
		LpszClassName: className,
	}
	if atom := win.RegisterClassEx(&wndClass); atom == 0 {
		return screenshot.Region{}, false, fmt.Errorf("register overlay class: failed")
	}
	defer win.UnregisterClass(className)

	overlayHwnd = win.CreateWindowEx(
		win.WS_EX_TOPMOST|win.WS_EX_LAYERED|win.WS_EX_TOOLWINDOW,
		className,
		syscall.StringToUTF16Ptr("Select region"),
		win.WS_POPUP|win.WS_VISIBLE,
		vx, vy, vw, vh,
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if overlayHwnd == 0 {
		return screenshot.Region{}, false, fmt.Errorf("create overlay window: failed")
	}
	defer win.DestroyWindow(overlayHwnd)

	procSetLayeredWindowAttrs.Call(uintptr(overlayHwnd), 0, overlayAlpha, lwaAlpha)

	win.ShowWindow(overlayHwnd, win.SW_SHOW)
	procAllowSetForegroundWindow.Call(uintptr(os.Getpid()))
	win.SetForegroundWindow(overlayHwnd)
	win.BringWindowToTop(overlayHwnd)
	win.SetFocus(overlayHwnd)
	win.UpdateWindow(overlayHwnd)

	// WM_KEYDOWN is unreliable when focus is contested right after the hotkey,
	// so Escape is also detected by polling.
	if id := win.SetTimer(overlayHwnd, keyPollTimerID, keyPollIntervalMs, 0); id == 0 {
		log.Printf("Overlay: failed to start key poll timer")
	}

	var msg win.MSG
	for {
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 || ret == -1 {
			// WM_QUIT from cancelSelection, or a message pump error.
			return screenshot.Region{}, true, nil
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)

		select {
		case region := <-selectionResult:
			log.Printf("Overlay: selection %s", region)
			return region, false, nil
		default:
		}

		if err := ctx.Err(); err != nil {
			return screenshot.Region{}, true, nil
		}
	}
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		selecting = true
		startX = int32(win.LOWORD(uint32(lParam)))
		startY = int32(win.HIWORD(uint32(lParam)))
		endX, endY = startX, startY
		win.InvalidateRect(hwnd, nil, true)
		return 0

	case win.WM_MOUSEMOVE:
		if selecting {
			endX = int32(win.LOWORD(uint32(lParam)))
			endY = int32(win.HIWORD(uint32(lParam)))
			win.InvalidateRect(hwnd, nil, true)
			win.UpdateWindow(hwnd)
		}
		return 0

	case win.WM_LBUTTONUP:
		if selecting {
			win.ReleaseCapture()
			selecting = false
			endX = int32(win.LOWORD(uint32(lParam)))
			endY = int32(win.HIWORD(uint32(lParam)))

			left := minI32(startX, endX)
			top := minI32(startY, endY)
			width := absI32(endX - startX)
			height := absI32(endY - startY)

			if width <= minSelectionSpan || height <= minSelectionSpan {
				log.Printf("Overlay: selection %dx%d below threshold, cancelling", width, height)
				cancelSelection()
				return 0
			}

			selectionResult <- screenshot.Region{
				X:      int(left + virtualX),
				Y:      int(top + virtualY),
				Width:  int(width),
				Height: int(height),
			}
		}
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		drawHints(hdc)
		if selecting {
			drawRubberBand(hdc, startX, startY, endX, endY)
		}
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_SETCURSOR:
		if crossCursor != 0 {
			win.SetCursor(crossCursor)
		}
		return 1

	case win.WM_TIMER:
		if wParam == keyPollTimerID {
			pollEscape()
		}
		return 0

	case win.WM_KEYDOWN:
		if wParam == win.VK_ESCAPE {
			escapeWasDown = true
			cancelSelection()
		}
		return 0

	case win.WM_KEYUP, win.WM_SYSKEYUP:
		if wParam == win.VK_ESCAPE {
			escapeWasDown = false
		}
		return 0

	case win.WM_NCHITTEST:
		// Everything is client area so we see all mouse events.
		return uintptr(win.HTCLIENT)

	case win.WM_DESTROY:
		win.KillTimer(hwnd, keyPollTimerID)
		// No PostQuitMessage here: on the success path Select returns before
		// DestroyWindow, and a queued WM_QUIT would abort the next selection
		// on this thread immediately.
		return 0
	}

	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}

func pollEscape() {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(win.VK_ESCAPE))
	s := uint16(state)
	down := s&0x8000 != 0
	pressed := s&0x0001 != 0
	if !escapeWasDown && (down || pressed) {
		cancelSelection()
	}
	escapeWasDown = down
}

func cancelSelection() {
	log.Printf("Overlay: selection cancelled")
	win.PostQuitMessage(0)
}

func drawRubberBand(hdc win.HDC, x0, y0, x1, y1 int32) {
	gdi32 := syscall.NewLazyDLL("gdi32.dll")
	createPen := gdi32.NewProc("CreatePen")
	rectangle := gdi32.NewProc("Rectangle")

	pen, _, _ := createPen.Call(0, 2, 0x00D47800) // BGR
	oldPen := win.SelectObject(hdc, win.HGDIOBJ(pen))
	oldBrush := win.SelectObject(hdc, win.GetStockObject(win.NULL_BRUSH))

	rectangle.Call(uintptr(hdc),
		uintptr(minI32(x0, x1)), uintptr(minI32(y0, y1)),
		uintptr(maxI32(x0, x1)), uintptr(maxI32(y0, y1)))

	win.SelectObject(hdc, oldPen)
	win.SelectObject(hdc, oldBrush)
	win.DeleteObject(win.HGDIOBJ(pen))
}

func drawHints(hdc win.HDC) {
	hint := "Drag to select, ESC to cancel"
	win.SetBkMode(hdc, win.TRANSPARENT)
	win.SetTextColor(hdc, win.COLORREF(0x00FFFFFF))
	win.TextOut(hdc, 16, 16, syscall.StringToUTF16Ptr(hint), int32(len(hint)))
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func absI32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}
