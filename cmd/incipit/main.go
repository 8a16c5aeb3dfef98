// Command incipit converts Word document endnotes into inline incipit notes
// and activates bare URLs as hyperlinks. It can also run as an HTTP service.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/incipitworks/incipit/core/convert"
	"github.com/incipitworks/incipit/internal/api"
	"github.com/incipitworks/incipit/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for incipit.
var CLI struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log output format"`

	Convert ConvertCmd `cmd:"" help:"Convert endnotes to inline incipit notes"`
	Links   LinksCmd   `cmd:"" help:"Activate bare URLs as hyperlinks without converting endnotes"`
	Serve   ServeCmd   `cmd:"" help:"Start the HTTP API server"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ConvertCmd converts a document's endnotes and activates links in the
// result.
type ConvertCmd struct {
	In        string `arg:"" help:"Input .docx file" type:"existingfile"`
	Out       string `name:"out" short:"o" required:"" help:"Output .docx file"`
	WordCount int    `name:"word-count" default:"3" help:"Target incipit length in words (3-8)"`
	Style     string `name:"style" default:"bold" enum:"bold,italic" help:"Incipit emphasis style"`
	SkipLinks bool   `name:"skip-links" help:"Do not activate bare URLs in the output"`
}

func (c *ConvertCmd) Run() error {
	data, err := os.ReadFile(c.In)
	if err != nil {
		return err
	}

	out, err := convert.Transform(data, convert.Options{
		WordCount: c.WordCount,
		Style:     c.Style,
	})
	if err != nil {
		return err
	}
	if !c.SkipLinks {
		out, err = convert.ActivateLinks(out)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(c.Out, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes)\n", c.Out, len(out))
	return nil
}

// LinksCmd activates bare URLs in a document without touching endnotes.
type LinksCmd struct {
	In  string `arg:"" help:"Input .docx file" type:"existingfile"`
	Out string `name:"out" short:"o" required:"" help:"Output .docx file"`
}

func (c *LinksCmd) Run() error {
	data, err := os.ReadFile(c.In)
	if err != nil {
		return err
	}

	out, err := convert.ActivateLinks(data)
	if err != nil {
		return err
	}

	if err := os.WriteFile(c.Out, out, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d bytes)\n", c.Out, len(out))
	return nil
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port int `name:"port" default:"8080" env:"INCIPIT_PORT" help:"HTTP listen port"`
}

func (c *ServeCmd) Run() error {
	return api.Start(api.Config{
		Port:    c.Port,
		Version: version,
	})
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("incipit version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("incipit"),
		kong.Description("Endnote-to-incipit converter for Word documents"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
