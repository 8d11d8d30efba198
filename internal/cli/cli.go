// Package cli реализует командный интерфейс retail поверх сервисного слоя.
// Каждая команда печатает заголовок и JSON результата либо "Error: <message>".
// Код выхода всегда 0: ошибки только печатаются.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
	"github.com/vladislavdragonenkov/retail/internal/service/customer"
	"github.com/vladislavdragonenkov/retail/internal/service/order"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
	"github.com/vladislavdragonenkov/retail/internal/service/report"
)

// Services — сервисы, которые вызывает CLI.
type Services struct {
	Catalog   *catalog.Service
	Customers *customer.Service
	Orders    *order.Service
	Payments  *payment.Service
	Reports   *report.Service
}

type command func(ctx context.Context, args []string) error

// CLI разбирает аргументы и печатает результаты в out.
type CLI struct {
	svc    Services
	out    io.Writer
	logger *log.Entry
	groups map[string]map[string]command
}

// New создаёт CLI. logger может быть nil.
func New(svc Services, out io.Writer, logger *log.Entry) *CLI {
	if logger == nil {
		logger = log.WithField("component", "cli")
	}
	c := &CLI{svc: svc, out: out, logger: logger}
	c.groups = map[string]map[string]command{
		"product": {
			"add":       c.productAdd,
			"list":      c.productList,
			"show":      c.productShow,
			"update":    c.productUpdate,
			"restock":   c.productRestock,
			"reduce":    c.productReduce,
			"delete":    c.productDelete,
			"search":    c.productSearch,
			"low-stock": c.productLowStock,
		},
		"customer": {
			"add":    c.customerAdd,
			"update": c.customerUpdate,
			"delete": c.customerDelete,
			"list":   c.customerList,
			"search": c.customerSearch,
		},
		"order": {
			"create": c.orderCreate,
			"show":   c.orderShow,
			"cancel": c.orderCancel,
		},
		"payment": {
			"pay":    c.paymentPay,
			"refund": c.paymentRefund,
		},
		"report": {
			"top-products":        c.reportTopProducts,
			"revenue":             c.reportRevenue,
			"orders-per-customer": c.reportOrdersPerCustomer,
			"loyal-customers":     c.reportLoyalCustomers,
		},
	}
	return c
}

// Run выполняет одну команду вида `<group> <action> [flags]`.
// Неизвестная команда печатает справку.
func (c *CLI) Run(ctx context.Context, args []string) {
	if len(args) < 2 {
		c.usage()
		return
	}
	actions, ok := c.groups[args[0]]
	if !ok {
		c.usage()
		return
	}
	cmd, ok := actions[args[1]]
	if !ok {
		c.usage()
		return
	}

	if err := cmd(ctx, args[2:]); err != nil {
		if !domain.IsBusiness(err) && !errors.Is(err, errUsage) {
			c.logger.WithError(err).WithField("command", args[0]+" "+args[1]).Error("command failed")
		}
		c.printf("Error: %s\n", strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
	}
}

func (c *CLI) usage() {
	c.printf("usage: retail <command> <action> [flags]\n\ncommands:\n")
	groups := make([]string, 0, len(c.groups))
	for name := range c.groups {
		groups = append(groups, name)
	}
	sort.Strings(groups)
	for _, group := range groups {
		actions := make([]string, 0, len(c.groups[group]))
		for name := range c.groups[group] {
			actions = append(actions, name)
		}
		sort.Strings(actions)
		c.printf("  %-9s %s\n", group, strings.Join(actions, ", "))
	}
}

// print выводит заголовок и результат как JSON с отступом в два пробела.
func (c *CLI) print(heading string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if heading != "" {
		c.printf("%s\n", heading)
	}
	c.printf("%s\n", data)
	return nil
}

func (c *CLI) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// errUsage помечает ошибки разбора флагов.
var errUsage = errors.New("usage")

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse разбирает флаги и проверяет, что обязательные заданы.
func parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s", errUsage, err.Error())
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	set := visited(fs)
	for _, name := range required {
		if !set[name] {
			return fmt.Errorf("%w: flag --%s is required", errUsage, name)
		}
	}
	return nil
}

func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
