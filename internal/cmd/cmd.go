package cmd

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/gogf/gf/v2/net/ghttp"
	"github.com/gogf/gf/v2/os/gcmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Malowking/dsquery/core/common"
	"github.com/Malowking/dsquery/internal/controller/dataset"
	"github.com/Malowking/dsquery/internal/service"
)

var (
	Main = gcmd.Command{
		Name:  "main",
		Usage: "main",
		Brief: "start http server",
		Func: func(ctx context.Context, parser *gcmd.Parser) (err error) {
			initAll(ctx)
			defer shutdown(ctx)

			shared := service.Shared()
			shared.Janitor.Start(ctx)
			if shared.Bus != nil {
				common.SafeGo(ctx, "cache-invalidation-listener", func() {
					if err := shared.Bus.Listen(ctx); err != nil {
						g.Log().Errorf(ctx, "Cache invalidation listener exited: %v", err)
					}
				})
			}

			s := g.Server()
			s.BindHandler("/metrics", ghttp.WrapH(promhttp.HandlerFor(shared.Registry, promhttp.HandlerOpts{})))
			s.Group("/api", func(group *ghttp.RouterGroup) {
				group.Middleware(MiddlewareHandlerResponse, ghttp.MiddlewareCORS)
				group.Bind(
					dataset.NewV1(),
				)
			})
			s.Run()
			return nil
		},
	}
)
