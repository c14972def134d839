package chain

import (
	"context"
	"reflect"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	Endpoint, _ = tag.NewKey("endpoint")

	RPCRequestDuration = stats.Float64("chain/rpc_request_ms", "Duration of chain rpc requests", stats.UnitMilliseconds)

	RPCRequestDurationView = &view.View{
		Measure:     RPCRequestDuration,
		Aggregation: view.Distribution(0, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000),
		TagKeys:     []tag.Key{Endpoint},
	}

	DefaultViews = []*view.View{
		RPCRequestDurationView,
	}
)

// Timer records the elapsed milliseconds into m when the returned func runs.
func Timer(ctx context.Context, m *stats.Float64Measure) func() {
	start := time.Now()
	return func() {
		stats.Record(ctx, m.M(float64(time.Since(start).Microseconds())/1000))
	}
}

// Proxy fills every func field of out with a wrapper around the same field of
// in that tags the context with the field name and times the call. Both must
// be pointers to the same struct type whose funcs take a context first.
func Proxy(in interface{}, out interface{}) {
	rint := reflect.ValueOf(out).Elem()
	ra := reflect.ValueOf(in).Elem()

	for f := 0; f < rint.NumField(); f++ {
		field := rint.Type().Field(f)
		fn := ra.Field(f)
		if field.Type.Kind() != reflect.Func || fn.IsNil() {
			continue
		}

		rint.Field(f).Set(reflect.MakeFunc(field.Type, func(args []reflect.Value) (results []reflect.Value) {
			ctx := args[0].Interface().(context.Context)
			// upsert function name into context
			ctx, _ = tag.New(ctx, tag.Upsert(Endpoint, field.Name))
			stop := Timer(ctx, RPCRequestDuration)
			defer stop()
			// pass tagged ctx back into function call
			args[0] = reflect.ValueOf(ctx)
			return fn.Call(args)
		}))
	}
}
