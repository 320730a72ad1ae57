package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/small-frappuccino/ctfchannels/pkg/app"
	"github.com/small-frappuccino/ctfchannels/pkg/log"
)

const usage = `usage: ctfchannels [serve|register|audit <guild-id> [limit]|version]

  serve     run the interactions server (default)
  register  publish the slash commands once and print Discord's answer
  audit     list the latest commands recorded for a guild
  version   print the version
`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = app.Run(context.Background())
	case "register":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = app.Register(ctx, os.Stdout)
		cancel()
	case "audit":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		limit := 20
		if len(os.Args) > 3 {
			n, convErr := strconv.Atoi(os.Args[3])
			if convErr != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "invalid limit %q\n", os.Args[3])
				os.Exit(2)
			}
			limit = n
		}
		err = app.Audit(context.Background(), os.Args[2], limit, os.Stdout)
	case "version":
		fmt.Printf("%s %s\n", app.Name, app.Version)
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.ErrorLoggerRaw().Error(fmt.Sprintf("Fatal: %v", err))
		os.Exit(1)
	}
}
