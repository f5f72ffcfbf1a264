// Package view turns controller snapshots into plain data the frontend renders.
package view

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	"noise-cleaner/internal/controller"
	"noise-cleaner/internal/domain"
)

const (
	Title          = "DeepFilterNet Noise Cancellation"
	dropPrompt     = "Drag and drop a .wav file here or click to select"
	processingText = "Cleaning audio..."
)

// Button is one clickable control bound to a controller action.
type Button struct {
	Action domain.Action `json:"action"`
	Label  string        `json:"label"`
}

// View describes everything the window shows for one snapshot.
type View struct {
	Title      string           `json:"title"`
	State      domain.StateKind `json:"state"`
	Headline   string           `json:"headline"`
	Detail     string           `json:"detail,omitempty"`
	FileLabel  string           `json:"fileLabel,omitempty"`
	Progress   float64          `json:"progress"`
	ShowBar    bool             `json:"showBar"`
	Busy       bool             `json:"busy"`
	AcceptDrop bool             `json:"acceptDrop"`
	IsError    bool             `json:"isError"`
	Buttons    []Button         `json:"buttons"`
}

var buttonLabels = map[domain.Action]string{
	domain.ActionDownload:         "Download Engine (Required)",
	domain.ActionSelectFile:       "Select WAV File",
	domain.ActionStartProcessing:  "Clean Audio",
	domain.ActionRetry:            "Retry",
	domain.ActionContinue:         "Clean Another File",
	domain.ActionCancel:           "Cancel",
	domain.ActionOpenFileLocation: "Open File Location",
}

// Render is a pure function of the snapshot. Buttons appear exactly for the
// actions the controller would accept.
func Render(s controller.Snapshot) View {
	v := View{
		Title:      Title,
		State:      s.State.Kind,
		AcceptDrop: s.Can(domain.ActionSelectFile),
		Buttons:    make([]Button, 0, len(s.Allowed)),
	}
	for _, action := range s.Allowed {
		v.Buttons = append(v.Buttons, Button{Action: action, Label: ButtonLabel(action)})
	}
	if s.HasSelection {
		v.FileLabel = fileLabel(s.Selected)
	}

	switch s.State.Kind {
	case domain.StateIdle:
		v.Headline = "Checking resources..."
		v.Busy = true
	case domain.StateEngineMissing:
		v.Headline = "The noise-suppression engine is not installed."
		v.Detail = "It is downloaded once and kept for later runs."
	case domain.StateDownloading:
		v.Progress = s.State.Progress.Fraction()
		v.ShowBar = true
		v.Busy = true
		v.Headline = fmt.Sprintf("Downloading... %.0f%%", math.Floor(v.Progress*100))
		v.Detail = transferLabel(s.State.Progress)
	case domain.StateReady:
		if s.HasSelection {
			v.Headline = "Ready."
		} else {
			v.Headline = dropPrompt
		}
	case domain.StateProcessing:
		v.Headline = processingText
		v.Busy = true
	case domain.StateDone:
		v.Headline = "Finished!"
		v.Detail = "Saved to: " + s.State.OutputPath
		v.Progress = 1
	case domain.StateError:
		v.IsError = true
		v.Headline = "Error"
		if s.State.Failure != nil {
			v.Headline = "Error: " + s.State.Failure.Error()
			v.Detail = s.State.Failure.Stderr
		}
	}
	return v
}

// ButtonLabel returns the caption for action.
func ButtonLabel(action domain.Action) string {
	if label, ok := buttonLabels[action]; ok {
		return label
	}
	return string(action)
}

func fileLabel(file domain.SelectedFile) string {
	if file.Size > 0 {
		return fmt.Sprintf("File: %s (%s)", file.Name, humanize.Bytes(uint64(file.Size)))
	}
	return "File: " + file.Name
}

func transferLabel(p domain.Progress) string {
	done := humanize.Bytes(uint64(max(p.BytesDone, 0)))
	if p.BytesTotal <= 0 {
		return done
	}
	return fmt.Sprintf("%s of %s", done, humanize.Bytes(uint64(p.BytesTotal)))
}
