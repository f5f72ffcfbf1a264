package controller

import "noise-cleaner/internal/domain"

// message is anything the controller loop consumes.
type message interface {
	isMessage()
}

type actionMsg struct {
	action domain.Action
	path   string
	reply  chan error
}

// progressMsg carries one download progress step tagged with its generation.
type progressMsg struct {
	gen      uint64
	progress domain.Progress
}

type downloadDoneMsg struct {
	gen    uint64
	engine domain.EngineBinary
	err    error
}

type processDoneMsg struct {
	gen    uint64
	output string
	err    error
}

func (actionMsg) isMessage()       {}
func (progressMsg) isMessage()     {}
func (downloadDoneMsg) isMessage() {}
func (processDoneMsg) isMessage()  {}
