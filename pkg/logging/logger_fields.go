package logging

import (
	"time"

	"github.com/dd0wney/cluso-topology/pkg/topology"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Domain fields

func Component(name string) Field {
	return String("component", name)
}

func Calculation(id int64) Field {
	return Int64("calc_id", id)
}

func RouteID(id int64) Field {
	return Int64("route_id", id)
}

func LinkID(id int64) Field {
	return Int64("link_id", id)
}

func Entity(ref topology.EntityRef) Field {
	return String("entity", ref.String())
}

func Operation(op string) Field {
	return String("operation", op)
}

func Method(m string) Field {
	return String("method", m)
}

func Path(p string) Field {
	return String("path", p)
}

func Status(code int) Field {
	return Int("status", code)
}

func RequestID(id string) Field {
	return String("request_id", id)
}

func Latency(d time.Duration) Field {
	return Duration("latency", d)
}

func Count(n int) Field {
	return Int("count", n)
}
