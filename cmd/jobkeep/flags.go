package main

import "time"

// Flag structs decouple cobra from command logic for testing.

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// APIFlags holds daemon connection flags embedded in every client command.
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type RunFlags struct {
	Label string
	APIFlags
}

type StatusFlags struct {
	APIFlags
}

type LogsFlags struct {
	Tail     int
	MaxChars int
	APIFlags
}

type StopFlags struct {
	APIFlags
}

type PruneFlags struct {
	APIFlags
}

type ServeFlags struct {
	ConfigPath string
	DataDir    string
	Listen     string
}
