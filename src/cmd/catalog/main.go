// Command catalog browses a storefront's catalog API from the terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	app "storefront/src/app"
	"storefront/src/client"
	cfg "storefront/src/configuration"
	"storefront/src/view"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	config, err := cfg.Parse()
	if err != nil {
		config = &cfg.Properties{Storefront: cfg.StorefrontProperties{BaseURL: "http://localhost:8088", Timeout: 10 * time.Second}}
	}

	service := func(c *cli.Context) *client.Service {
		return client.New(c.String("base-url"), nil, c.Duration("timeout"))
	}

	return &cli.App{
		Name:   "catalog",
		Usage:  "browse storefront collections",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base-url", Value: config.Storefront.BaseURL, EnvVars: []string{"STOREFRONT_BASE_URL"}},
			&cli.DurationFlag{Name: "timeout", Value: config.Storefront.Timeout},
		},
		Commands: []*cli.Command{
			{
				Name:  "types",
				Usage: "list collection types",
				Action: func(c *cli.Context) error {
					types, err := service(c).CollectionTypes(c.Context)
					if err != nil {
						return err
					}
					for _, t := range types {
						fmt.Fprintf(c.App.Writer, "%-24s %s\n", t.Slug, t.Name)
					}
					return nil
				},
			},
			{
				Name:  "collections",
				Usage: "list collections",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "collection type slug or id"},
					&cli.BoolFlag{Name: "featured"},
				},
				Action: func(c *cli.Context) error {
					svc := service(c)
					list := svc.Collections
					if c.Bool("featured") {
						list = func(ctx context.Context, _ string) ([]app.Collection, error) { return svc.FeaturedCollections(ctx) }
					}
					collections, err := list(c.Context, c.String("type"))
					if err != nil {
						return err
					}
					return view.RenderCollectionCards(c.App.Writer, view.NewCollectionCards(collections))
				},
			},
			{
				Name:      "search",
				Usage:     "search collections",
				ArgsUsage: "<query>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("search needs exactly one query", 2)
					}
					collections, err := service(c).SearchCollections(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return view.RenderCollectionCards(c.App.Writer, view.NewCollectionCards(collections))
				},
			},
			{
				Name:      "show",
				Usage:     "show one collection with its products",
				ArgsUsage: "<slug>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("show needs exactly one slug", 2)
					}
					collection, err := service(c).Collection(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return view.RenderCollectionPage(c.App.Writer, view.NewCollectionPage(collection))
				},
			},
		},
	}
}
