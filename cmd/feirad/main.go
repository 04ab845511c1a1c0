package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/feiralabs/feira/internal/app"
	"github.com/feiralabs/feira/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	core := fx.New(
		app.Module(app.Params{ProfileName: profileName}),
	)

	core.Run()
}
