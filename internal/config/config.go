package config

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"parkstep.io/internal/logging"
	"parkstep.io/internal/protocol"
	"parkstep.io/internal/sim/world"
)

// Config is the on-disk process configuration. Field names follow the yaml
// keys; the json tags drive the reflected schema.
type Config struct {
	SessionID string `yaml:"session_id" json:"session_id,omitempty" jsonschema:"description=Stamped into logs and the index; generated when empty"`
	Mode      string `yaml:"mode" json:"mode,omitempty" jsonschema:"enum=none,enum=server,enum=client"`

	Listen     string `yaml:"listen" json:"listen,omitempty" jsonschema:"description=host:port the server listens on"`
	ServerURL  string `yaml:"server_url" json:"server_url,omitempty" jsonschema:"description=websocket url a client dials"`
	PlayerName string `yaml:"player_name" json:"player_name,omitempty"`
	MaxPlayers int    `yaml:"max_players" json:"max_players,omitempty" jsonschema:"minimum=1,maximum=255"`

	TickRateHz       int  `yaml:"tick_rate_hz" json:"tick_rate_hz,omitempty" jsonschema:"minimum=1,maximum=1000"`
	ChecksumInterval int  `yaml:"checksum_interval" json:"checksum_interval,omitempty" jsonschema:"minimum=1"`
	DesyncDebugging  bool `yaml:"desync_debugging" json:"desync_debugging,omitempty"`
	StayConnected    bool `yaml:"stay_connected" json:"stay_connected,omitempty"`

	DataDir string `yaml:"data_dir" json:"data_dir,omitempty" jsonschema:"description=root for logs, snapshots, reports and the index"`

	Log    LogConfig    `yaml:"log" json:"log,omitempty"`
	World  WorldConfig  `yaml:"world" json:"world,omitempty"`
	Replay ReplayConfig `yaml:"replay" json:"replay,omitempty"`
	Mirror MirrorConfig `yaml:"mirror" json:"mirror,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level,omitempty" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format,omitempty" jsonschema:"enum=text,enum=json"`
}

type WorldConfig struct {
	EntityCapacity int             `yaml:"entity_capacity" json:"entity_capacity,omitempty" jsonschema:"minimum=1"`
	Seed           uint64          `yaml:"seed" json:"seed,omitempty"`
	Cash           int64           `yaml:"cash" json:"cash,omitempty"`
	EntranceFee    int64           `yaml:"entrance_fee" json:"entrance_fee,omitempty" jsonschema:"minimum=0"`
	MapSize        int32           `yaml:"map_size" json:"map_size,omitempty" jsonschema:"minimum=16,maximum=1024"`
	NoMoney        bool            `yaml:"no_money" json:"no_money,omitempty"`
	Scenery        []SceneryConfig `yaml:"scenery" json:"scenery,omitempty"`
}

type SceneryConfig struct {
	ID    uint16 `yaml:"id" json:"id" jsonschema:"required"`
	Price int64  `yaml:"price" json:"price" jsonschema:"required,minimum=0"`
}

// ReplayConfig names optional replay files. Record and Playback are
// mutually exclusive.
type ReplayConfig struct {
	Record   string `yaml:"record" json:"record,omitempty"`
	Playback string `yaml:"playback" json:"playback,omitempty"`
}

// MirrorConfig uploads snapshots, desync reports and session logs to an
// S3-compatible bucket. Credentials come from PARKSTEP_S3_ACCESS_KEY_ID and
// PARKSTEP_S3_SECRET_ACCESS_KEY.
type MirrorConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled,omitempty"`
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`
	Bucket   string `yaml:"bucket" json:"bucket,omitempty"`
	Region   string `yaml:"region" json:"region,omitempty"`
	Prefix   string `yaml:"prefix" json:"prefix,omitempty" jsonschema:"description=Object key prefix; defaults to the session id"`
	Workers  int    `yaml:"workers" json:"workers,omitempty" jsonschema:"minimum=1,maximum=16"`
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrap(err, "read config")
	}
	if err := ValidateDocument(b); err != nil {
		return cfg, eris.Wrapf(err, "%s", path)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, eris.Wrapf(err, "%s", path)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, eris.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		Mode:             "none",
		Listen:           "127.0.0.1:11753",
		PlayerName:       "player",
		MaxPlayers:       16,
		TickRateHz:       40,
		ChecksumInterval: 100,
		DataDir:          "data",
		Log:              LogConfig{Level: "info", Format: "text"},
		World: WorldConfig{
			EntityCapacity: world.DefaultEntityCapacity,
			Seed:           1,
			Cash:           10000,
			MapSize:        world.DefaultMapSize,
			Scenery: []SceneryConfig{
				{ID: 1, Price: 100},
				{ID: 2, Price: 40},
			},
		},
	}
}

// Normalize fills zero values and assigns a session id.
func (c *Config) Normalize() {
	d := Defaults()
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	if c.PlayerName == "" {
		c.PlayerName = d.PlayerName
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.ChecksumInterval <= 0 {
		c.ChecksumInterval = d.ChecksumInterval
	}
	if c.DataDir == "" {
		c.DataDir = d.DataDir
	}
	if c.Mirror.Prefix == "" {
		c.Mirror.Prefix = c.SessionID
	}
	if c.Mirror.Workers <= 0 {
		c.Mirror.Workers = 2
	}
	if c.World.EntityCapacity <= 0 {
		c.World.EntityCapacity = d.World.EntityCapacity
	}
	if c.World.MapSize <= 0 {
		c.World.MapSize = d.World.MapSize
	}
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	mode, ok := protocol.ParseMode(c.Mode)
	if !ok {
		return eris.Errorf("unknown mode %q", c.Mode)
	}
	if mode == protocol.ModeClient && strings.TrimSpace(c.ServerURL) == "" {
		return eris.New("client mode needs server_url")
	}
	if mode == protocol.ModeServer && strings.TrimSpace(c.Listen) == "" {
		return eris.New("server mode needs listen")
	}
	if c.Replay.Record != "" && c.Replay.Playback != "" {
		return eris.New("replay.record and replay.playback are exclusive")
	}
	if c.Mirror.Enabled && (strings.TrimSpace(c.Mirror.Endpoint) == "" || strings.TrimSpace(c.Mirror.Bucket) == "") {
		return eris.New("mirror needs endpoint and bucket")
	}
	if _, err := uuid.Parse(c.SessionID); err != nil {
		return eris.Wrap(err, "session_id")
	}
	seen := make(map[uint16]struct{}, len(c.World.Scenery))
	for _, s := range c.World.Scenery {
		if _, dup := seen[s.ID]; dup {
			return eris.Errorf("world.scenery: duplicate id %d", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

func (c Config) NetMode() protocol.Mode {
	m, _ := protocol.ParseMode(c.Mode)
	return m
}

func (c Config) WorldConfig() world.Config {
	wc := world.Config{
		EntityCapacity: c.World.EntityCapacity,
		Seed:           c.World.Seed,
		Cash:           c.World.Cash,
		EntranceFee:    c.World.EntranceFee,
		MapSize:        c.World.MapSize,
		ParkFlags:      world.ParkFlagOpen,
		Scenery:        make(map[uint16]world.Money, len(c.World.Scenery)),
	}
	if c.World.NoMoney {
		wc.ParkFlags |= world.ParkFlagNoMoney
	}
	for _, s := range c.World.Scenery {
		wc.Scenery[s.ID] = s.Price
	}
	return wc
}

func (c Config) LogOptions() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
