package tui

import (
	"devon-cli/internal/editor"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
	"devon-cli/internal/mutate"
	"devon-cli/internal/navguard"
)

type view int

const (
	viewMenu view = iota
	viewList
	viewDetail
	viewEdit
	viewNotFound
)

type modalKind int

const (
	modalNone modalKind = iota
	modalConfirmLifecycle
	modalConfirmLeave
)

// leaveAction is where a guarded leave goes once the operator agrees.
type leaveAction int

const (
	leaveToDetail leaveAction = iota
	leaveQuit
)

func (a leaveAction) reason() navguard.Reason {
	if a == leaveQuit {
		return navguard.ReasonQuit
	}
	return navguard.ReasonBack
}

type listLoadedMsg struct {
	seq     int
	listing mutate.Listing
	err     error
}

type handleLoadedMsg struct {
	kind model.Kind
	id   int64
	h    mutate.Handle
	err  error
}

type savedMsg struct {
	h   mutate.Handle
	err error
}

type transitionDoneMsg struct {
	h       mutate.Handle
	op      lifecycle.Op
	message string
	err     error
}

type editorDoneMsg struct {
	field string
	edit  *editor.Edit
	err   error
}

type identityChangedMsg struct {
	id model.Identity
	ok bool
}
