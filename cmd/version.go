package cmd

// Version is the application version, intended to be set at build time:
//
//	go build -ldflags "-X github.com/pagecap/pagecap/cmd.Version=1.2.3"
var Version = "2.1.0"
