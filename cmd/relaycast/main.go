package main

import (
	"fmt"
	"log"
	"os"

	"github.com/relaycast/relaycast-go/cli"
	_ "github.com/relaycast/relaycast-go/diagnostics"
	_ "go.uber.org/automaxprocs"
)

func main() {
	c, err, ok := cli.NewConfigFromCLI(os.Args)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if ok {
		os.Exit(0)
	}

	runner, err := cli.NewRunner(c, []cli.Option{cli.WithName("Relaycast")})

	if err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}

	err = runner.Run()

	if err != nil {
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
}
