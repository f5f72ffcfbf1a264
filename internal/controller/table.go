package controller

import "noise-cleaner/internal/domain"

// actionOrder fixes the order AllowedActions reports actions in.
var actionOrder = []domain.Action{
	domain.ActionDownload,
	domain.ActionSelectFile,
	domain.ActionStartProcessing,
	domain.ActionRetry,
	domain.ActionContinue,
	domain.ActionCancel,
	domain.ActionOpenFileLocation,
}

// Allowed reports whether action is valid in state. hasSelection tells whether
// a SelectedFile exists. Every state kind is listed; unknown kinds allow nothing.
func Allowed(state domain.AppState, action domain.Action, hasSelection bool) bool {
	switch state.Kind {
	case domain.StateIdle:
		return false
	case domain.StateEngineMissing:
		return action == domain.ActionDownload
	case domain.StateDownloading:
		return action == domain.ActionCancel
	case domain.StateReady:
		switch action {
		case domain.ActionSelectFile:
			return true
		case domain.ActionStartProcessing:
			return hasSelection
		}
		return false
	case domain.StateProcessing:
		return action == domain.ActionCancel
	case domain.StateDone:
		switch action {
		case domain.ActionSelectFile, domain.ActionContinue, domain.ActionOpenFileLocation:
			return true
		}
		return false
	case domain.StateError:
		downloadFailed := state.Failure != nil && state.Failure.Cause == domain.ActionDownload
		switch action {
		case domain.ActionRetry:
			return true
		case domain.ActionDownload:
			return downloadFailed
		case domain.ActionSelectFile:
			return !downloadFailed
		}
		return false
	default:
		return false
	}
}

// AllowedActions lists every action valid in state.
func AllowedActions(state domain.AppState, hasSelection bool) []domain.Action {
	out := make([]domain.Action, 0, len(actionOrder))
	for _, action := range actionOrder {
		if Allowed(state, action, hasSelection) {
			out = append(out, action)
		}
	}
	return out
}

func knownKind(kind domain.StateKind) bool {
	switch kind {
	case domain.StateIdle, domain.StateEngineMissing, domain.StateDownloading, domain.StateReady,
		domain.StateProcessing, domain.StateDone, domain.StateError:
		return true
	}
	return false
}
