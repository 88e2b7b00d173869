package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-blog-cms/internal/app"
	"github.com/fairyhunter13/ai-blog-cms/internal/domain"
	"github.com/fairyhunter13/ai-blog-cms/internal/usecase"
)

// seedFile is the YAML document read by `blogctl seed`. Key values may
// reference environment variables as ${NAME}.
type seedFile struct {
	Categories []seedCategory `yaml:"categories"`
	Keys       []seedKey      `yaml:"keys"`
}

type seedCategory struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type seedKey struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

type seedReport struct {
	Categories, Keys, Skipped int
}

type categoryCreator interface {
	Create(ctx context.Context, in usecase.CategoryInput) (domain.Category, error)
}

type keyAdder interface {
	Add(ctx context.Context, in usecase.KeyInput) (usecase.KeyView, error)
}

var seedCmd = &cobra.Command{
	Use:   "seed [file.yaml]",
	Short: "Create categories and credentials from a YAML file",
	Long:  "Without a file the default topic categories are created. Existing names are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc := defaultSeed()
		if len(args) == 1 {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}
			if doc, err = parseSeed(b); err != nil {
				return err
			}
		}
		return withContainer(cmd, func(ctx context.Context, c *app.Container) error {
			rep, err := applySeed(ctx, doc, c.Categories, c.KeyAdmin)
			printSeedReport(cmd.OutOrStdout(), rep)
			return err
		})
	},
}

func defaultSeed() seedFile {
	var doc seedFile
	for _, tc := range usecase.TopicCategories {
		doc.Categories = append(doc.Categories, seedCategory{Name: tc.Name, Description: tc.Scope})
	}
	return doc
}

func parseSeed(b []byte) (seedFile, error) {
	var doc seedFile
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return seedFile{}, fmt.Errorf("yaml parse: %w", err)
	}
	if len(doc.Categories) == 0 && len(doc.Keys) == 0 {
		return seedFile{}, errors.New("seed file has no categories or keys")
	}
	for i := range doc.Keys {
		doc.Keys[i].Value = os.ExpandEnv(doc.Keys[i].Value)
	}
	return doc, nil
}

// applySeed is idempotent: names that already exist are counted as skipped.
func applySeed(ctx context.Context, doc seedFile, cats categoryCreator, keys keyAdder) (seedReport, error) {
	var rep seedReport
	for _, sc := range doc.Categories {
		_, err := cats.Create(ctx, usecase.CategoryInput{Name: sc.Name, Description: sc.Description})
		switch {
		case err == nil:
			rep.Categories++
		case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicateName):
			rep.Skipped++
		default:
			return rep, fmt.Errorf("category %q: %w", sc.Name, err)
		}
	}
	for _, sk := range doc.Keys {
		if sk.Value == "" {
			rep.Skipped++
			continue
		}
		_, err := keys.Add(ctx, usecase.KeyInput{Name: sk.Name, Value: sk.Value})
		switch {
		case err == nil:
			rep.Keys++
		case errors.Is(err, domain.ErrDuplicateName):
			rep.Skipped++
		default:
			return rep, fmt.Errorf("key %q: %w", sk.Name, err)
		}
	}
	return rep, nil
}

func printSeedReport(w io.Writer, rep seedReport) {
	fmt.Fprintf(w, "categories added: %d\nkeys added: %d\nskipped: %d\n", rep.Categories, rep.Keys, rep.Skipped)
}
