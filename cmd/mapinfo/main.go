// Command mapinfo inspects and queries mapsforge binary .map files from the
// command line.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/mapsforge/pkg/mapsforge"
	"github.com/urfave/cli/v2"
)

func header(pathArg string) error {
	r, err := mapsforge.Open(pathArg, mapsforge.DefaultParseOptions())
	if err != nil {
		return err
	}
	defer r.Close()

	info := r.Info()
	fmt.Printf("file version:    %d\n", info.FileVersion)
	fmt.Printf("projection:      %s\n", info.ProjectionName)
	fmt.Printf("bounding box:    %+v\n", info.BoundingBox)
	fmt.Printf("zoom range:      %d-%d\n", info.ZoomLevelMin, info.ZoomLevelMax)
	fmt.Printf("number of sub-files: %d\n", info.NumberOfSubFiles)
	fmt.Printf("debug file:      %v\n", info.DebugFile)
	if info.Comment != nil {
		fmt.Printf("comment:         %s\n", *info.Comment)
	}
	if info.CreatedBy != nil {
		fmt.Printf("created by:      %s\n", *info.CreatedBy)
	}
	return nil
}

func parseSelector(s string) (mapsforge.Selector, error) {
	switch s {
	case "all", "":
		return mapsforge.SelectorAll, nil
	case "pois":
		return mapsforge.SelectorPois, nil
	case "named":
		return mapsforge.SelectorNamed, nil
	default:
		return 0, fmt.Errorf("unknown selector %q (want all, pois, or named)", s)
	}
}

func query(pathArg string, minLat, minLon, maxLat, maxLon float64, zoom uint8, selector string) error {
	r, err := mapsforge.Open(pathArg, mapsforge.DefaultParseOptions())
	if err != nil {
		return err
	}
	defer r.Close()

	bbox, err := mapsforge.NewBoundingBox(minLat, minLon, maxLat, maxLon)
	if err != nil {
		return err
	}

	sel, err := parseSelector(selector)
	if err != nil {
		return err
	}

	result, err := r.Read(bbox, zoom, sel)
	if err != nil {
		return err
	}

	fmt.Printf("pois: %d, ways: %d, water: %v\n", len(result.Pois), len(result.Ways), result.IsWater)
	return nil
}

func main() {
	app := &cli.App{
		Name:  "mapinfo",
		Usage: "inspect and query mapsforge binary map files",
		Commands: []*cli.Command{
			{
				Name:  "header",
				Usage: "print a map file's header metadata",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "path to a .map file"},
				},
				Action: func(cCtx *cli.Context) error {
					return header(cCtx.String("file"))
				},
			},
			{
				Name:  "query",
				Usage: "query POIs and ways within a bounding box",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Required: true, Usage: "path to a .map file"},
					&cli.Float64Flag{Name: "min-lat", Required: true},
					&cli.Float64Flag{Name: "min-lon", Required: true},
					&cli.Float64Flag{Name: "max-lat", Required: true},
					&cli.Float64Flag{Name: "max-lon", Required: true},
					&cli.IntFlag{Name: "zoom", Value: 14, Usage: "zoom level to query at"},
					&cli.StringFlag{Name: "selector", Value: "all", Usage: "all, pois, or named"},
				},
				Action: func(cCtx *cli.Context) error {
					zoom := cCtx.Int("zoom")
					if zoom < 0 || zoom > 255 {
						return fmt.Errorf("zoom %d out of range", zoom)
					}
					return query(
						cCtx.String("file"),
						cCtx.Float64("min-lat"), cCtx.Float64("min-lon"),
						cCtx.Float64("max-lat"), cCtx.Float64("max-lon"),
						uint8(zoom), cCtx.String("selector"),
					)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
