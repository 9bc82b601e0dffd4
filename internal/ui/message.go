package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRanked MsgKind = iota
	MsgHandedOff
	MsgAssembled
)

type rankedData struct {
	result *ranking.Result
	err    error
}

type handedOffData struct {
	authURL string
	err     error
}

type assembledData struct {
	job *tasks.AssemblyJob
	err error
}

// rankedMsg is the constructor for [MsgRanked]
func rankedMsg(result *ranking.Result, err error) Msg {
	return Msg{kind: MsgRanked, data: rankedData{result, err}}
}

// handedOffMsg is the constructor for [MsgHandedOff]
func handedOffMsg(authURL string, err error) Msg {
	return Msg{kind: MsgHandedOff, data: handedOffData{authURL, err}}
}

// assembledMsg is the constructor for [MsgAssembled]
func assembledMsg(job *tasks.AssemblyJob, err error) Msg {
	return Msg{kind: MsgAssembled, data: assembledData{job, err}}
}
