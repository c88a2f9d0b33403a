// Command order-cli composes and submits donut orders against the API.
//
//	order-cli [--addr URL] donuts
//	order-cli [--addr URL] orders
//	order-cli [--addr URL] get ID
//	order-cli [--addr URL] place --name NAME --pick DONUT_ID=QTY [--pick ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/donut-orders/internal/apiclient"
	"github.com/xenking/donut-orders/internal/composer"
)

const timeLayout = "2006-01-02 15:04:05"

func main() {
	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, nil); err != nil {
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
			for _, msg := range apiErr.Messages() {
				fmt.Fprintln(os.Stderr, msg)
			}
			os.Exit(1)
		}
		lg.Fatal("Command failed", zap.Error(err))
	}
}

// run executes one command. opts are passed to the API client.
func run(ctx context.Context, args []string, out io.Writer, opts []apiclient.Option) error {
	fs := flag.NewFlagSet("order-cli", flag.ContinueOnError)
	addr := fs.String("addr", envOr("DONUT_API_URL", "http://localhost:8080"), "API server URL (or DONUT_API_URL env)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("command required: donuts, orders, get or place")
	}

	client, err := apiclient.New(*addr, opts...)
	if err != nil {
		return err
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "donuts":
		return listDonuts(ctx, client, out)
	case "orders":
		return listOrders(ctx, client, out)
	case "get":
		if len(rest) != 1 {
			return errors.New("usage: get ID")
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "order id %q", rest[0])
		}
		return getOrder(ctx, client, out, id)
	case "place":
		return place(ctx, client, out, rest)
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func listDonuts(ctx context.Context, c *apiclient.Client, out io.Writer) error {
	donuts, err := c.ListDonuts(ctx)
	if err != nil {
		return err
	}
	for _, d := range donuts {
		fmt.Fprintf(out, "%d\t%s\n", d.ID, d.Flavor)
	}
	return nil
}

func listOrders(ctx context.Context, c *apiclient.Client, out io.Writer) error {
	orders, err := c.ListOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Fprintf(out, "%d\t%s\t%s\n", o.ID, o.Name, o.CreatedAt.Local().Format(timeLayout))
	}
	return nil
}

func getOrder(ctx context.Context, c *apiclient.Client, out io.Writer, id int64) error {
	o, err := c.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Order #%d for %s, placed %s\n", o.ID, o.Name, o.CreatedAt.Local().Format(timeLayout))
	for _, d := range o.Details {
		fmt.Fprintf(out, "  %s, quantity: %d\n", d.Donut.Flavor, d.Quantity)
	}
	fmt.Fprintf(out, "Total donuts: %d\n", o.Total)
	return nil
}

// picks collects repeated --pick DONUT_ID=QTY flags. A later pick for the
// same donut replaces the earlier one.
type picks []pick

type pick struct {
	donutID  int64
	quantity int
}

func (p *picks) String() string { return fmt.Sprint(len(*p)) }

func (p *picks) Set(v string) error {
	id, qty, ok := strings.Cut(v, "=")
	if !ok {
		return errors.Errorf("want DONUT_ID=QTY, got %q", v)
	}
	donutID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return errors.Wrap(err, "donut id")
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return errors.Wrap(err, "quantity")
	}
	*p = append(*p, pick{donutID: donutID, quantity: quantity})
	return nil
}

func place(ctx context.Context, c *apiclient.Client, out io.Writer, args []string) error {
	var selected picks
	fs := flag.NewFlagSet("place", flag.ContinueOnError)
	name := fs.String("name", "", "name for the order")
	fs.Var(&selected, "pick", "DONUT_ID=QTY, repeatable; quantity 0 removes the donut")
	if err := fs.Parse(args); err != nil {
		return err
	}

	donuts, err := c.ListDonuts(ctx)
	if err != nil {
		return errors.Wrap(err, "load flavors")
	}
	flavors := make(map[int64]string, len(donuts))
	for _, d := range donuts {
		flavors[d.ID] = d.Flavor
	}

	comp := composer.New()
	comp.SetName(*name)
	for _, p := range selected {
		flavor, ok := flavors[p.donutID]
		if !ok {
			return errors.Errorf("donut %d is not on the menu", p.donutID)
		}
		if err := comp.SelectQuantity(p.donutID, flavor, p.quantity); err != nil {
			return errors.Wrapf(err, "pick %s", flavor)
		}
	}

	fmt.Fprintln(out, "Your order:")
	for _, line := range comp.Summary() {
		fmt.Fprintln(out, "  "+line)
	}

	created, err := c.PlaceOrder(ctx, comp.Payload())
	if err != nil {
		return err
	}
	comp.Clear()
	fmt.Fprintf(out, "Placed order #%d for %s at %s\n", created.ID, created.Name, created.CreatedAt.Local().Format(time.Kitchen))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
