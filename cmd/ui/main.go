// Command ui is a desktop client for the task registry API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"
)

var (
	apiBase  = "http://localhost:8080/"
	apiToken string
	theme    *material.Theme
	client   = &http.Client{Timeout: 10 * time.Second}
)

const (
	pageDashboard = iota
	pageTasks
	pageEvents
)

var (
	grey  = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}
	red   = color.NRGBA{R: 0xC0, G: 0x30, B: 0x30, A: 0xFF}
	green = color.NRGBA{R: 0x00, G: 0xC0, B: 0x00, A: 0xFF}
)

type UI struct {
	window      *app.Window
	currentPage int

	navDashboard widget.Clickable
	navTasks     widget.Clickable
	navEvents    widget.Clickable
	refreshBtn   widget.Clickable

	taskList   widget.List
	idEditor   widget.Editor
	createBtn  widget.Clickable
	removeBtns []widget.Clickable
	eventList  widget.List

	mu      sync.Mutex
	status  Status
	taskIDs []uint32
	events  []Event
	notice  string
	failed  bool
}

type Status struct {
	Tasks       int    `json:"tasks"`
	Events      int    `json:"events"`
	Actors      int    `json:"actors"`
	Height      uint64 `json:"height"`
	Subscribers int    `json:"subscribers"`
}

type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Content   map[string]any `json:"content"`
}

func main() {
	if base := os.Getenv("API_BASE"); base != "" {
		apiBase = strings.TrimSuffix(base, "/") + "/"
	}
	apiToken = os.Getenv("API_TOKEN")

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x30, G: 0x60, B: 0xA0, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	ui := &UI{window: new(app.Window)}
	ui.taskList.Axis = layout.Vertical
	ui.eventList.Axis = layout.Vertical
	ui.idEditor.SingleLine = true
	ui.idEditor.Filter = "0123456789"

	go ui.pollData()

	go func() {
		ui.window.Option(app.Title("tasking"))
		ui.window.Option(app.Size(unit.Dp(1000), unit.Dp(700)))
		if err := ui.run(); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func (ui *UI) run() error {
	var ops op.Ops
	for {
		switch e := ui.window.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.handleClicks(gtx)
			ui.layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) handleClicks(gtx layout.Context) {
	if ui.navDashboard.Clicked(gtx) {
		ui.currentPage = pageDashboard
	}
	if ui.navTasks.Clicked(gtx) {
		ui.currentPage = pageTasks
	}
	if ui.navEvents.Clicked(gtx) {
		ui.currentPage = pageEvents
	}
	if ui.refreshBtn.Clicked(gtx) {
		go ui.fetchAll()
	}
	if ui.createBtn.Clicked(gtx) {
		if id := ui.idEditor.Text(); id != "" {
			go ui.createTask(id)
			ui.idEditor.SetText("")
		}
	}

	ui.mu.Lock()
	ids := ui.taskIDs
	ui.mu.Unlock()
	for i := range ui.removeBtns {
		if i < len(ids) && ui.removeBtns[i].Clicked(gtx) {
			go ui.removeTask(ids[i])
		}
	}
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(ui.layoutNav),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.UniformInset(unit.Dp(16)).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						switch ui.currentPage {
						case pageTasks:
							return ui.layoutTasks(gtx)
						case pageEvents:
							return ui.layoutEvents(gtx)
						default:
							return ui.layoutDashboard(gtx)
						}
					}),
					layout.Rigid(ui.layoutNotice),
				)
			})
		}),
	)
}

func (ui *UI) layoutNav(gtx layout.Context) layout.Dimensions {
	gtx.Constraints.Min.X = gtx.Dp(unit.Dp(160))
	gtx.Constraints.Max.X = gtx.Dp(unit.Dp(160))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				label := material.H6(theme, "tasking")
				label.Color = theme.Palette.ContrastFg
				return label.Layout(gtx)
			})
		}),
		layout.Rigid(navBtn(&ui.navDashboard, "Dashboard", ui.currentPage == pageDashboard)),
		layout.Rigid(navBtn(&ui.navTasks, "Tasks", ui.currentPage == pageTasks)),
		layout.Rigid(navBtn(&ui.navEvents, "Events", ui.currentPage == pageEvents)),
	)
}

func navBtn(btn *widget.Clickable, label string, active bool) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(8), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			b := material.Button(theme, btn, label)
			b.Background = color.NRGBA{A: 0}
			if active {
				b.Background = theme.Palette.ContrastBg
			}
			b.Color = theme.Palette.Fg
			return b.Layout(gtx)
		})
	}
}

func (ui *UI) layoutDashboard(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	s := ui.status
	ui.mu.Unlock()

	line := func(format string, v any) layout.FlexChild {
		return layout.Rigid(material.Body1(theme, fmt.Sprintf(format, v)).Layout)
	}
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(material.H5(theme, "Dashboard").Layout),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		line("Height: %d", s.Height),
		line("Tasks: %d", s.Tasks),
		line("Actors: %d", s.Actors),
		line("Events: %d", s.Events),
		line("Stream subscribers: %d", s.Subscribers),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		layout.Rigid(material.Button(theme, &ui.refreshBtn, "Refresh").Layout),
	)
}

func (ui *UI) layoutTasks(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	ids := ui.taskIDs
	ui.mu.Unlock()
	for len(ui.removeBtns) < len(ids) {
		ui.removeBtns = append(ui.removeBtns, widget.Clickable{})
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(material.H5(theme, "Tasks").Layout),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				layout.Flexed(1, material.Editor(theme, &ui.idEditor, "Task ID").Layout),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(material.Button(theme, &ui.createBtn, "Create").Layout),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.taskList).Layout(gtx, len(ids), func(gtx layout.Context, i int) layout.Dimensions {
				return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
						layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
							label := material.Body1(theme, fmt.Sprintf("#%d", ids[i]))
							label.Font.Weight = font.Bold
							return label.Layout(gtx)
						}),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							btn := material.Button(theme, &ui.removeBtns[i], "Remove")
							btn.Background = red
							return btn.Layout(gtx)
						}),
					)
				})
			})
		}),
	)
}

func (ui *UI) layoutEvents(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	events := ui.events
	ui.mu.Unlock()

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(material.H5(theme, "Events").Layout),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return material.List(theme, &ui.eventList).Layout(gtx, len(events), func(gtx layout.Context, i int) layout.Dimensions {
				e := events[i]
				content, _ := json.Marshal(e.Content)
				return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							label := material.Body2(theme, fmt.Sprintf("[%s] %s %s", e.Timestamp.Format("15:04:05"), e.Type, content))
							label.Font.Weight = font.Bold
							return label.Layout(gtx)
						}),
						layout.Rigid(func(gtx layout.Context) layout.Dimensions {
							label := material.Caption(theme, "source "+e.Source)
							label.Color = grey
							return label.Layout(gtx)
						}),
					)
				})
			})
		}),
	)
}

func (ui *UI) layoutNotice(gtx layout.Context) layout.Dimensions {
	ui.mu.Lock()
	msg, failed := ui.notice, ui.failed
	ui.mu.Unlock()
	if msg == "" {
		return layout.Dimensions{}
	}
	label := material.Caption(theme, msg)
	label.Color = green
	if failed {
		label.Color = red
	}
	return layout.Inset{Top: unit.Dp(8)}.Layout(gtx, label.Layout)
}

// Data fetching

func (ui *UI) pollData() {
	ui.fetchAll()
	ticker := time.NewTicker(5 * time.Second)
	for range ticker.C {
		ui.fetchAll()
	}
}

func (ui *UI) fetchAll() {
	var (
		s      Status
		tasks  struct{ IDs []uint32 `json:"ids"` }
		events []Event
	)
	if err := httpGetJSON(apiBase+"api/status", &s); err != nil {
		log.Printf("fetch status: %v", err)
	}
	if err := httpGetJSON(apiBase+"api/tasks", &tasks); err != nil {
		log.Printf("fetch tasks: %v", err)
	}
	if err := httpGetJSON(apiBase+"api/events?limit=100", &events); err != nil {
		log.Printf("fetch events: %v", err)
	}

	ui.mu.Lock()
	ui.status = s
	ui.taskIDs = tasks.IDs
	ui.events = events
	ui.mu.Unlock()
	ui.window.Invalidate()
}

func (ui *UI) createTask(id string) {
	body, _ := json.Marshal(map[string]json.Number{"id": json.Number(id)})
	ui.report("create "+id, apiDo(http.MethodPost, apiBase+"api/tasks", body))
}

func (ui *UI) removeTask(id uint32) {
	ui.report(fmt.Sprintf("remove %d", id), apiDo(http.MethodDelete, fmt.Sprintf("%sapi/tasks/%d", apiBase, id), nil))
}

func (ui *UI) report(action string, err error) {
	ui.mu.Lock()
	ui.failed = err != nil
	if err != nil {
		ui.notice = fmt.Sprintf("%s: %v", action, err)
	} else {
		ui.notice = action + ": ok"
	}
	ui.mu.Unlock()
	ui.fetchAll()
}

// apiDo sends an authenticated mutation and surfaces the API's error message.
func apiDo(method, url string, body []byte) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+apiToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		return nil
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return fmt.Errorf("%s", resp.Status)
	}
	return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
}

func httpGetJSON(url string, v any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", resp.Status, body)
	}
	return json.Unmarshal(body, v)
}
