// Command stash-cli is a minimal embedder of the stashy library, it wires a
// backend from command line options and runs a single get/set/del operation
// against it. All backend selection and connection wiring lives here, the
// library itself carries none of it.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/gurza/stashy"
)

var opts struct {
	Backend string `long:"backend" env:"STASHY_BACKEND" default:"local" choice:"local" choice:"redis" choice:"db" choice:"remote" description:"storage backend"`

	Redis struct {
		Host     string `long:"host" env:"HOST" default:"localhost" description:"redis host"`
		Port     int    `long:"port" env:"PORT" default:"6379" description:"redis port"`
		User     string `long:"user" env:"USER" description:"redis username"`
		Password string `long:"password" env:"PASSWORD" description:"redis password"`
		DB       int    `long:"db" env:"DB" default:"-1" description:"redis database index, -1 for default"`
		URL      string `long:"url" env:"URL" description:"redis connection string, overrides discrete fields"`
	} `group:"redis" namespace:"redis" env-namespace:"STASHY_REDIS"`

	DBURL string `long:"db-url" env:"STASHY_DB_URL" default:"stashy.db" description:"database URL, sqlite path or postgres://"`

	Remote struct {
		URL   string `long:"url" env:"URL" description:"remote stash service URL"`
		Token string `long:"token" env:"TOKEN" description:"bearer token"`
	} `group:"remote" namespace:"remote" env-namespace:"STASHY_REMOTE"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`

	Args struct {
		Command string `positional-arg-name:"command" required:"yes" description:"get, set or del"`
		Key     string `positional-arg-name:"key" required:"yes"`
		Value   string `positional-arg-name:"value"`
	} `positional-args:"yes"`
}

func main() {
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(2)
	}

	setupLog(opts.Dbg)

	if err := run(context.Background(), os.Stdout); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer) error {
	st, closer, err := makeStash(ctx)
	if err != nil {
		return fmt.Errorf("failed to create %s backend: %w", opts.Backend, err)
	}
	defer closer()

	switch opts.Args.Command {
	case "get":
		value, ok, err := st.Fetch(ctx, opts.Args.Key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q not found", opts.Args.Key)
		}
		fmt.Fprintln(w, value)
	case "set":
		prev, ok, err := st.Stash(ctx, opts.Args.Key, opts.Args.Value)
		if err != nil {
			return err
		}
		if ok {
			log.Printf("[INFO] replaced previous value %q", prev)
		}
	case "del":
		removed, ok, err := st.Delete(ctx, opts.Args.Key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q not found", opts.Args.Key)
		}
		fmt.Fprintln(w, removed)
	default:
		return fmt.Errorf("unknown command %q, expected get, set or del", opts.Args.Command)
	}
	return nil
}

// makeStash builds the selected backend and a close function for it.
func makeStash(ctx context.Context) (stashy.Stash, func(), error) {
	noop := func() {}

	switch opts.Backend {
	case "local":
		return stashy.NewLocal(), noop, nil

	case "redis":
		if opts.Redis.URL != "" {
			st, err := stashy.ConnectRedisURL(ctx, opts.Redis.URL)
			if err != nil {
				return nil, nil, err
			}
			return st, func() { _ = st.Close() }, nil
		}
		var redisOpts []stashy.RedisOption
		if opts.Redis.User != "" || opts.Redis.Password != "" {
			redisOpts = append(redisOpts, stashy.WithCredentials(stashy.Credentials{
				Username: opts.Redis.User,
				Password: opts.Redis.Password,
			}))
		}
		if opts.Redis.DB >= 0 {
			redisOpts = append(redisOpts, stashy.WithDatabase(opts.Redis.DB))
		}
		st, err := stashy.ConnectRedis(ctx, opts.Redis.Host, opts.Redis.Port, redisOpts...)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	case "db":
		st, err := stashy.NewDB(opts.DBURL)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil

	case "remote":
		var remoteOpts []stashy.RemoteOption
		if opts.Remote.Token != "" {
			remoteOpts = append(remoteOpts, stashy.WithToken(opts.Remote.Token))
		}
		st, err := stashy.NewRemote(opts.Remote.URL, remoteOpts...)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", opts.Backend)
	}
}

func setupLog(dbg bool) {
	if dbg {
		log.Setup(log.Debug, log.CallerFile, log.CallerFunc, log.Msec, log.LevelBraces)
		return
	}
	log.Setup(log.Msec, log.LevelBraces)
}
