// cartctl is a terminal storefront client. It keeps a local cart snapshot
// in step with the storefront server, so each command picks up the cart
// the previous one left behind.
//
// Commands:
//
//	cartctl add -variant ID [-qty N] [-stock N]
//	cartctl update -line ID -qty N
//	cartctl remove -line ID
//	cartctl clear
//	cartctl get [-id CART]
//	cartctl search [-select N] [-full] TEXT
//	cartctl qty -variant ID [-stock N] [-input RAW] [-inc N] [-dec N]
//
// Examples:
//
//	cartctl search charizard
//	cartctl add -variant gid://shopify/ProductVariant/42 -qty 2
//	ID=$(cartctl get -q)
//	cartctl clear
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/cartsync"
	"storefront/internal/inventory"
	"storefront/internal/model"
	"storefront/internal/search"
	"storefront/internal/storage"
	"storefront/internal/storefront"
)

const (
	defaultServer = "http://localhost:8080"
	searchTimeout = 15 * time.Second
)

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

func disableColors() {
	colorReset, colorRed, colorGreen, colorYellow = "", "", "", ""
	colorBlue, colorCyan, colorGray, colorBold = "", "", "", ""
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{out: os.Stdout, errOut: os.Stderr, getenv: os.Getenv}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) && !errors.Is(err, errUsage) {
			a.printError("%v", err)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// app holds the output streams and the flags shared by every command.
type app struct {
	out    io.Writer
	errOut io.Writer
	getenv func(string) string

	server   string
	storeDir string
	redisURL string
	session  string
	quiet    bool
	noColor  bool
	verbose  bool
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		a.printUsage()
		return errUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return a.runAdd(ctx, rest)
	case "update":
		return a.runUpdate(ctx, rest)
	case "remove":
		return a.runRemove(ctx, rest)
	case "clear":
		return a.runClear(ctx, rest)
	case "get":
		return a.runGet(ctx, rest)
	case "search":
		return a.runSearch(ctx, rest)
	case "qty":
		return a.runQty(ctx, rest)
	case "-h", "-help", "--help", "help":
		a.printUsage()
		return nil
	default:
		fmt.Fprintf(a.errOut, "Unknown command: %s\n\n", cmd)
		a.printUsage()
		return errUsage
	}
}

func (a *app) printUsage() {
	fmt.Fprintf(a.errOut, `cartctl - storefront cart client

Usage:
  cartctl <command> [options]

Commands:
  add       Add a variant to the cart (creates the cart if needed)
  update    Set a cart line's quantity (0 removes it)
  remove    Remove a cart line
  clear     Remove every line and forget the cart
  get       Refresh and show the cart
  search    Search products the way the search box does
  qty       Show the quantity selector state for a variant

Examples:
  cartctl search charizard
  cartctl add -variant gid://shopify/ProductVariant/42 -qty 2
  cartctl update -line gid://shopify/CartLine/1 -qty 3
  cartctl clear

Run 'cartctl <command> -h' for command-specific options.
`)
}

// newFlagSet registers the flags every command accepts.
func (a *app) newFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.StringVar(&a.server, "server", a.envOr("STOREFRONT_URL", defaultServer), "Storefront server base URL")
	fs.StringVar(&a.storeDir, "store", a.envOr("CARTCTL_DIR", defaultStoreDir()), "Directory holding the cart record")
	fs.StringVar(&a.redisURL, "redis", a.getenv("CARTCTL_REDIS_URL"), "Keep the cart record in Redis instead of a file")
	fs.StringVar(&a.session, "session", a.envOr("CARTCTL_SESSION", "default"), "Redis session name")
	fs.BoolVar(&a.quiet, "q", false, "Quiet mode - only output ids")
	fs.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&a.verbose, "v", false, "Verbose - log requests to stderr")
	fs.Usage = func() {
		fmt.Fprintf(a.errOut, "Usage: cartctl %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

func (a *app) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.noColor {
		disableColors()
	}
	return nil
}

func (a *app) envOr(key, def string) string {
	if v := a.getenv(key); v != "" {
		return v
	}
	return def
}

func defaultStoreDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cartctl"
	}
	return filepath.Join(dir, "cartctl")
}

// =============================================================================
// ENGINE SETUP
// =============================================================================

type env struct {
	client *storefront.Client
	engine *cartsync.Engine
	logger *slog.Logger
	close  func()
}

// open connects to the server and restores the persisted cart.
func (a *app) open(ctx context.Context) (*env, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if a.verbose {
		logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	client, err := storefront.New(storefront.Options{BaseURL: a.server, Logger: logger})
	if err != nil {
		return nil, err
	}

	store, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}

	engine := cartsync.New(client, store, logger)
	if err := engine.Restore(ctx); err != nil {
		closeStore()
		return nil, fmt.Errorf("restoring cart: %w", err)
	}

	return &env{
		client: client,
		engine: engine,
		logger: logger,
		close: func() {
			engine.Close()
			closeStore()
		},
	}, nil
}

func (a *app) openStore() (storage.Store, func(), error) {
	if a.redisURL != "" {
		opts, err := redis.ParseURL(a.redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		return storage.NewRedisStore(rdb, a.session, 0), func() { _ = rdb.Close() }, nil
	}
	fsStore, err := storage.NewFileStore(a.storeDir)
	if err != nil {
		return nil, nil, err
	}
	a.printInfo("Cart record: %s", fsStore.Path())
	return fsStore, func() {}, nil
}

// =============================================================================
// CART COMMANDS
// =============================================================================

func (a *app) runAdd(ctx context.Context, args []string) error {
	fs := a.newFlagSet("add", "-variant ID [options]")
	var variantID, qty string
	var stock int
	fs.StringVar(&variantID, "variant", "", "Variant ID (required)")
	fs.StringVar(&qty, "qty", "1", "Quantity; clamped to what is still available")
	fs.IntVar(&stock, "stock", -1, "Total stock for the variant (-1 uses the cart's last known value)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if variantID == "" {
		fs.Usage()
		return errUsage
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	ctrl := inventory.NewController(e.engine, variantFor(e.engine.Snapshot(), variantID, stock))
	n := ctrl.Commit(qty)
	st := ctrl.State()
	if !st.CanAdd {
		return fmt.Errorf("cannot add %s: %s", variantID, st.Label)
	}

	a.printInfo("%s", st.Label)
	snap, err := e.engine.AddItems(ctx, []model.LineInput{{VariantID: variantID, Quantity: n}})
	if err != nil {
		return fmt.Errorf("adding to cart: %w", err)
	}
	ctrl.Added()

	a.printSuccess("Added %d to cart", n)
	a.printSnapshot(snap)
	return nil
}

// variantFor builds the quantity controller's view of a variant. A line
// already in the cart supplies stock and sellability when -stock is unset.
func variantFor(snap cartsync.Snapshot, variantID string, stock int) inventory.Variant {
	v := inventory.Variant{ID: variantID, AvailableForSale: true}
	if stock >= 0 {
		v.TotalStock = model.IntPtr(stock)
		return v
	}
	if l, ok := snap.LineByVariant(variantID); ok {
		v.AvailableForSale = l.AvailableForSale
		v.TotalStock = l.QuantityAvailable
	}
	return v
}

func (a *app) runUpdate(ctx context.Context, args []string) error {
	fs := a.newFlagSet("update", "-line ID -qty N [options]")
	var lineID string
	var qty int
	fs.StringVar(&lineID, "line", "", "Cart line ID (required)")
	fs.IntVar(&qty, "qty", -1, "New quantity; 0 removes the line (required)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if lineID == "" || qty < 0 {
		fs.Usage()
		return errUsage
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	snap, err := e.engine.UpdateLineQuantity(ctx, lineID, qty)
	if err != nil {
		return fmt.Errorf("updating line: %w", err)
	}
	a.printSuccess("Line updated")
	a.printSnapshot(snap)
	return nil
}

func (a *app) runRemove(ctx context.Context, args []string) error {
	fs := a.newFlagSet("remove", "-line ID [options]")
	var lineID string
	fs.StringVar(&lineID, "line", "", "Cart line ID (required)")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if lineID == "" {
		fs.Usage()
		return errUsage
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	snap, err := e.engine.RemoveLine(ctx, lineID)
	if err != nil {
		return fmt.Errorf("removing line: %w", err)
	}
	a.printSuccess("Line removed")
	a.printSnapshot(snap)
	return nil
}

func (a *app) runClear(ctx context.Context, args []string) error {
	fs := a.newFlagSet("clear", "[options]")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.engine.Clear(ctx); err != nil {
		if model.IsTransport(err) {
			a.printWarning("Server unreachable; local cart cleared anyway")
		}
		return fmt.Errorf("clearing cart: %w", err)
	}
	a.printSuccess("Cart cleared")
	return nil
}

func (a *app) runGet(ctx context.Context, args []string) error {
	fs := a.newFlagSet("get", "[-id CART] [options]")
	var cartID string
	fs.StringVar(&cartID, "id", "", "Cart ID to load (defaults to the saved cart)")
	if err := a.parse(fs, args); err != nil {
		return err
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	fetched, err := e.engine.Fetch(ctx, cartID)
	if err != nil {
		return fmt.Errorf("fetching cart: %w", err)
	}
	snap := e.engine.Snapshot()
	if !fetched && snap.Empty() {
		a.printInfo("No cart yet")
		return nil
	}
	a.printSnapshot(snap)
	return nil
}

// =============================================================================
// SEARCH COMMAND
// =============================================================================

func (a *app) runSearch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("search", "[options] TEXT")
	var pick int
	var full bool
	fs.IntVar(&pick, "select", -1, "Navigate to the Nth result (0-based)")
	fs.BoolVar(&full, "full", false, "Navigate to the full search page")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fs.Usage()
		return errUsage
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if a.verbose {
		logger = slog.New(slog.NewTextHandler(a.errOut, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	client, err := storefront.New(storefront.Options{BaseURL: a.server, Logger: logger})
	if err != nil {
		return err
	}

	views := make(chan search.View, 16)
	sess := search.NewSession(client, search.Options{
		Logger: logger,
		OnChange: func(v search.View) {
			select {
			case views <- v:
			default:
			}
		},
	})
	defer sess.Close()

	sess.Type(query)
	view, err := awaitSettled(ctx, sess, views)
	if err != nil {
		return err
	}

	switch view.State {
	case search.Failed:
		return fmt.Errorf("search failed: %w", view.Err)
	case search.Empty:
		a.printWarning("No products found for %q", view.Query)
	default:
		a.printSuccess("%d result(s) for %q", len(view.Results), view.Query)
		for i, p := range view.Results {
			if a.quiet {
				fmt.Fprintln(a.out, p.Handle)
				continue
			}
			fmt.Fprintf(a.out, "  %s[%d]%s %s%s%s  %s\n", colorGray, i, colorReset, colorBold, p.Title, colorReset, p.Price)
			if p.VariantID != "" {
				fmt.Fprintf(a.out, "      variant: %s%s%s\n", colorCyan, p.VariantID, colorReset)
			}
		}
	}

	var target search.Target
	var ok bool
	switch {
	case pick >= 0:
		if target, ok = sess.Select(pick); !ok {
			return fmt.Errorf("no result %d", pick)
		}
	case full:
		target, ok = sess.Enter()
	}
	if ok {
		fmt.Fprintf(a.out, "%s→ %s%s\n", colorBlue, target.Path, colorReset)
	}
	return nil
}

// awaitSettled waits for the session to leave its debouncing and querying
// states.
func awaitSettled(ctx context.Context, sess *search.Session, views <-chan search.View) (search.View, error) {
	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()
	for {
		select {
		case v := <-views:
			switch v.State {
			case search.Results, search.Empty, search.Failed:
				return v, nil
			}
		case <-ctx.Done():
			return sess.View(), fmt.Errorf("search did not finish: %w", ctx.Err())
		}
	}
}

// =============================================================================
// QUANTITY COMMAND
// =============================================================================

func (a *app) runQty(ctx context.Context, args []string) error {
	fs := a.newFlagSet("qty", "-variant ID [options]")
	var variantID, input string
	var stock, inc, dec int
	var soldOut bool
	fs.StringVar(&variantID, "variant", "", "Variant ID (required)")
	fs.IntVar(&stock, "stock", -1, "Total stock (-1 uses the cart's last known value)")
	fs.BoolVar(&soldOut, "sold-out", false, "Treat the variant as not available for sale")
	fs.StringVar(&input, "input", "", "Typed quantity, applied as on loss of focus")
	fs.IntVar(&inc, "inc", 0, "Press + this many times")
	fs.IntVar(&dec, "dec", 0, "Press - this many times")
	if err := a.parse(fs, args); err != nil {
		return err
	}
	if variantID == "" {
		fs.Usage()
		return errUsage
	}

	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	v := variantFor(e.engine.Snapshot(), variantID, stock)
	if soldOut {
		v.AvailableForSale = false
	}
	ctrl := inventory.NewController(e.engine, v)
	if input != "" {
		ctrl.Commit(input)
	}
	for i := 0; i < inc; i++ {
		ctrl.Increment()
	}
	for i := 0; i < dec; i++ {
		ctrl.Decrement()
	}

	st := ctrl.State()
	if a.quiet {
		fmt.Fprintln(a.out, st.Quantity)
		return nil
	}
	fmt.Fprintf(a.out, "%s%s%s\n", colorBold, st.Label, colorReset)
	fmt.Fprintf(a.out, "  Quantity:   %d\n", st.Quantity)
	fmt.Fprintf(a.out, "  In cart:    %d\n", st.InCart)
	if st.Unlimited {
		fmt.Fprintf(a.out, "  Available:  unlimited\n")
	} else {
		fmt.Fprintf(a.out, "  Available:  %d\n", st.AvailableToAdd)
	}
	if st.LowStock {
		a.printWarning("Only %d left", st.AvailableToAdd)
	}
	if st.MaxSelected {
		a.printInfo("Maximum quantity selected")
	}
	fmt.Fprintf(a.out, "  Buttons:    -%s +%s add%s\n", onOff(st.CanDecrement), onOff(st.CanIncrement), onOff(st.CanAdd))
	return nil
}

func onOff(b bool) string {
	if b {
		return "[on]"
	}
	return "[off]"
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func (a *app) printSnapshot(s cartsync.Snapshot) {
	if a.quiet {
		fmt.Fprintln(a.out, s.CartID)
		return
	}
	if s.CartID == "" {
		fmt.Fprintf(a.out, "  %sCart is empty%s\n", colorGray, colorReset)
		return
	}
	fmt.Fprintf(a.out, "  Cart: %s%s%s\n", colorCyan, s.CartID, colorReset)
	for _, l := range s.Items {
		stock := "untracked"
		if l.QuantityAvailable != nil {
			stock = strconv.Itoa(*l.QuantityAvailable) + " in stock"
		}
		if !l.AvailableForSale {
			stock = colorRed + "unavailable" + colorReset
		}
		title := l.Title
		if l.VariantTitle != "" {
			title += " / " + l.VariantTitle
		}
		fmt.Fprintf(a.out, "    - %s x%d  %s  (%s)\n", title, l.Quantity, l.Price, stock)
		fmt.Fprintf(a.out, "      %sline %s%s\n", colorGray, l.ID, colorReset)
	}
	fmt.Fprintf(a.out, "  Items: %d\n", s.TotalQuantity())
	if !s.Cost.Total.IsZero() {
		fmt.Fprintf(a.out, "  Subtotal: %s\n", s.Cost.Subtotal)
		fmt.Fprintf(a.out, "  Total: %s%s%s\n", colorGreen, s.Cost.Total, colorReset)
	}
	if s.CheckoutURL != "" {
		fmt.Fprintf(a.out, "  Checkout: %s%s%s\n", colorBlue, s.CheckoutURL, colorReset)
	}
}

func (a *app) printSuccess(format string, args ...interface{}) {
	if !a.quiet {
		fmt.Fprintf(a.out, "%s✓ %s%s\n", colorGreen, fmt.Sprintf(format, args...), colorReset)
	}
}

func (a *app) printError(format string, args ...interface{}) {
	fmt.Fprintf(a.errOut, "%s✗ %s%s\n", colorRed, fmt.Sprintf(format, args...), colorReset)
}

func (a *app) printWarning(format string, args ...interface{}) {
	fmt.Fprintf(a.out, "%s⚠ %s%s\n", colorYellow, fmt.Sprintf(format, args...), colorReset)
}

func (a *app) printInfo(format string, args ...interface{}) {
	if !a.quiet {
		fmt.Fprintf(a.out, "%s→ %s%s\n", colorGray, fmt.Sprintf(format, args...), colorReset)
	}
}
