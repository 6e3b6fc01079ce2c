package cli

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"oasgo.dev/core/rss"
	"oasgo.dev/core/store"
	"oasgo.dev/core/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <feed-url>",
	Short: "fetch a feed once and save any new posts",
	Args:  cobra.ExactArgs(1),
	Run:   runFetch,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <feed-url>",
	Short: "crawl a paginated feed using its site-specific crawl rule",
	Args:  cobra.ExactArgs(1),
	Run:   runCrawl,
}

func init() {
	fetchCmd.Flags().Bool("update", false, "overwrite posts that already exist")
	viper.BindPFlag("fetch.update", fetchCmd.Flags().Lookup("update"))

	crawlCmd.Flags().Bool("update", false, "don't stop at the first already-seen post")
	crawlCmd.Flags().Int("max-pages", 0, "stop after this many pages (0 for unbounded)")
	viper.BindPFlag("crawl.update", crawlCmd.Flags().Lookup("update"))
	viper.BindPFlag("crawl.max_pages", crawlCmd.Flags().Lookup("max-pages"))

	RootCmd.AddCommand(fetchCmd)
	RootCmd.AddCommand(crawlCmd)
}

func openMainStore(ctx context.Context) (*store.Store, error) {
	cfg := orchestratorConfig()
	main, err := store.New(ctx, cfg.CouchDB)
	if err != nil {
		return nil, err
	}
	if err := main.Init(ctx); err != nil {
		return nil, err
	}
	return main, nil
}

func runFetch(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	main, err := openMainStore(ctx)
	if err != nil {
		logrus.Fatalf("opening store: %v", err)
	}
	defer main.Close()

	watcher, err := rss.New(args[0], types.DefaultFeedSettings())
	if err != nil {
		logrus.Fatalf("invalid feed url: %v", err)
	}
	if err := watcher.Load(ctx); err != nil {
		logrus.Fatalf("fetching feed: %v", err)
	}

	update := viper.GetBool("fetch.update")
	results, saved, err := watcher.Save(ctx, main, update)
	if err != nil {
		logrus.Fatalf("saving posts: %v", err)
	}
	fmt.Printf("saved %d of %d items from %s\n", len(saved), len(results), args[0])
}

func runCrawl(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	main, err := openMainStore(ctx)
	if err != nil {
		logrus.Fatalf("opening store: %v", err)
	}
	defer main.Close()

	feedURL, err := url.Parse(args[0])
	if err != nil {
		logrus.Fatalf("invalid feed url: %v", err)
	}

	opts := rss.CrawlOpts{
		URL:      feedURL,
		Crawl:    true,
		Update:   viper.GetBool("crawl.update"),
		MaxPages: viper.GetInt("crawl.max_pages"),
	}

	if err := rss.CrawlAndSave(ctx, main, opts, rss.DefaultCrawlers()); err != nil {
		logrus.Fatalf("crawling: %v", err)
	}
}
