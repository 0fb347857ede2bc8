package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arkade-os/lotteryd/internal/core/application"
	"github.com/arkade-os/lotteryd/internal/core/ports"
	"github.com/arkade-os/lotteryd/internal/infrastructure/db"
	inmemorylivestore "github.com/arkade-os/lotteryd/internal/infrastructure/live-store/inmemory"
	redislivestore "github.com/arkade-os/lotteryd/internal/infrastructure/live-store/redis"
	timescheduler "github.com/arkade-os/lotteryd/internal/infrastructure/scheduler/gocron"
	badgerwallet "github.com/arkade-os/lotteryd/internal/infrastructure/wallet/badger"
	sqlitewallet "github.com/arkade-os/lotteryd/internal/infrastructure/wallet/sqlite"
	"github.com/arkade-os/lotteryd/pkg/amount"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	supportedEventDbs = supportedType{
		"badger": {},
	}
	supportedDbs = supportedType{
		"badger": {},
		"sqlite": {},
	}
	supportedSchedulers = supportedType{
		"gocron": {},
	}
	supportedLiveStores = supportedType{
		"inmemory": {},
		"redis":    {},
	}
	supportedDrawPolicies = supportedType{
		string(application.DrawPolicyOwner):  {},
		string(application.DrawPolicyAnyone): {},
	}
)

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int

	DbType              string
	EventDbType         string
	DbDir               string
	EventDbDir          string
	LiveStoreType       string
	RedisUrl            string
	RedisTxNumOfRetries int
	SchedulerType       string

	Owner               string
	TicketPrice         uint64
	CurrencyDecimals    int32
	RoundDuration       int64
	BaseURI             string
	TicketLedgerAddress string
	DrawPolicy          string
	AutoDraw            bool
	EventsBufferSize    int

	repo      ports.RepoManager
	svc       application.Service
	adminSvc  application.AdminService
	wallet    ports.WalletService
	scheduler ports.SchedulerService
	liveStore ports.LiveStore
}

func (c *Config) String() string {
	clone := *c
	if clone.RedisUrl != "" {
		clone.RedisUrl = "••••••"
	}
	json, err := json.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir             = "DATADIR"
	Port                = "PORT"
	LogLevel            = "LOG_LEVEL"
	EventDbType         = "EVENT_DB_TYPE"
	DbType              = "DB_TYPE"
	LiveStoreType       = "LIVE_STORE_TYPE"
	RedisUrl            = "REDIS_URL"
	RedisTxNumOfRetries = "REDIS_NUM_OF_RETRIES"
	SchedulerType       = "SCHEDULER_TYPE"
	Owner               = "OWNER"
	TicketPrice         = "TICKET_PRICE"
	CurrencyDecimals    = "CURRENCY_DECIMALS"
	RoundDuration       = "ROUND_DURATION"
	BaseURI             = "BASE_URI"
	TicketLedgerAddress = "TICKET_LEDGER_ADDRESS"
	DrawPolicy          = "DRAW_POLICY"
	AutoDraw            = "AUTO_DRAW"
	EventsBufferSize    = "EVENTS_BUFFER_SIZE"

	defaultDatadir             = appDataDir("lotteryd")
	DefaultPort                = 7080
	defaultLogLevel            = 4
	defaultDbType              = "badger"
	defaultEventDbType         = "badger"
	defaultLiveStoreType       = "inmemory"
	defaultRedisTxNumOfRetries = 10
	defaultSchedulerType       = "gocron"
	defaultTicketPrice         = "0.01"
	defaultCurrencyDecimals    = amount.DefaultDecimals
	defaultRoundDuration       = 86400 // 1 day
	defaultDrawPolicy          = string(application.DrawPolicyOwner)
	defaultAutoDraw            = false
	defaultEventsBufferSize    = 1024

	walletDbFile = "wallet.db"
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("LOTTERYD")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(EventDbType, defaultEventDbType)
	viper.SetDefault(LiveStoreType, defaultLiveStoreType)
	viper.SetDefault(RedisTxNumOfRetries, defaultRedisTxNumOfRetries)
	viper.SetDefault(SchedulerType, defaultSchedulerType)
	viper.SetDefault(TicketPrice, defaultTicketPrice)
	viper.SetDefault(CurrencyDecimals, defaultCurrencyDecimals)
	viper.SetDefault(RoundDuration, defaultRoundDuration)
	viper.SetDefault(DrawPolicy, defaultDrawPolicy)
	viper.SetDefault(AutoDraw, defaultAutoDraw)
	viper.SetDefault(EventsBufferSize, defaultEventsBufferSize)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("failed to create datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	var redisUrl string
	if viper.GetString(LiveStoreType) == "redis" {
		redisUrl = viper.GetString(RedisUrl)
		if redisUrl == "" {
			return nil, fmt.Errorf("live store type set to 'redis' but redis url is missing")
		}
	}

	decimals := viper.GetInt32(CurrencyDecimals)
	if decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("invalid currency decimals %d, must be in range [0, 18]", decimals)
	}
	ticketPrice, err := amount.Parse(viper.GetString(TicketPrice), decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid ticket price: %s", err)
	}

	return &Config{
		Datadir:             viper.GetString(Datadir),
		Port:                viper.GetUint32(Port),
		LogLevel:            viper.GetInt(LogLevel),
		DbType:              viper.GetString(DbType),
		EventDbType:         viper.GetString(EventDbType),
		DbDir:               dbPath,
		EventDbDir:          dbPath,
		LiveStoreType:       viper.GetString(LiveStoreType),
		RedisUrl:            redisUrl,
		RedisTxNumOfRetries: viper.GetInt(RedisTxNumOfRetries),
		SchedulerType:       viper.GetString(SchedulerType),
		Owner:               viper.GetString(Owner),
		TicketPrice:         ticketPrice,
		CurrencyDecimals:    decimals,
		RoundDuration:       viper.GetInt64(RoundDuration),
		BaseURI:             viper.GetString(BaseURI),
		TicketLedgerAddress: viper.GetString(TicketLedgerAddress),
		DrawPolicy:          viper.GetString(DrawPolicy),
		AutoDraw:            viper.GetBool(AutoDraw),
		EventsBufferSize:    viper.GetInt(EventsBufferSize),
	}, nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func appDataDir(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "." + appName
	}
	return filepath.Join(home, "."+appName)
}

func (c *Config) Validate() error {
	if !supportedEventDbs.supports(c.EventDbType) {
		return fmt.Errorf(
			"event db type not supported, please select one of: %s",
			supportedEventDbs,
		)
	}
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if !supportedSchedulers.supports(c.SchedulerType) {
		return fmt.Errorf(
			"scheduler type not supported, please select one of: %s",
			supportedSchedulers,
		)
	}
	if len(c.LiveStoreType) > 0 && !supportedLiveStores.supports(c.LiveStoreType) {
		return fmt.Errorf(
			"live store type not supported, please select one of: %s",
			supportedLiveStores,
		)
	}
	if !supportedDrawPolicies.supports(c.DrawPolicy) {
		return fmt.Errorf(
			"draw policy not supported, please select one of: %s",
			supportedDrawPolicies,
		)
	}
	if len(c.Owner) <= 0 {
		return fmt.Errorf("missing owner")
	}
	if c.TicketPrice == 0 {
		return fmt.Errorf("ticket price must be greater than 0")
	}
	if c.RoundDuration < 1 {
		return fmt.Errorf("invalid round duration, must be at least 1 second")
	}
	if c.EventsBufferSize <= 0 {
		return fmt.Errorf("events buffer size must be greater than 0")
	}
	if len(c.TicketLedgerAddress) <= 0 {
		c.TicketLedgerAddress = deriveLedgerAddress(c.Owner, c.Datadir)
		log.Infof("ticket ledger address not set, derived %s", c.TicketLedgerAddress)
	}
	if len(c.BaseURI) > 0 && !strings.HasSuffix(c.BaseURI, "/") {
		c.BaseURI += "/"
	}

	if err := c.repoManager(); err != nil {
		return err
	}
	if err := c.walletService(); err != nil {
		return err
	}
	if err := c.liveStoreService(); err != nil {
		return err
	}
	if err := c.schedulerService(); err != nil {
		return err
	}
	if err := c.adminService(); err != nil {
		return err
	}
	return nil
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) AdminService() application.AdminService {
	return c.adminSvc
}

func (c *Config) WalletService() ports.WalletService {
	return c.wallet
}

func (c *Config) repoManager() error {
	var svc ports.RepoManager
	var err error
	var eventStoreConfig []interface{}
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.EventDbType {
	case "badger":
		eventStoreConfig = []interface{}{c.EventDbDir, logger}
	default:
		return fmt.Errorf("unknown event db type")
	}

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "sqlite":
		dataStoreConfig = []interface{}{c.DbDir}
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err = db.NewService(db.ServiceConfig{
		EventStoreType:   c.EventDbType,
		DataStoreType:    c.DbType,
		EventStoreConfig: eventStoreConfig,
		DataStoreConfig:  dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

// walletService keeps the escrow in the same kind of store as the ticket
// ledger so that the two survive restarts together.
func (c *Config) walletService() error {
	var svc ports.WalletService
	var err error
	switch c.DbType {
	case "badger":
		svc, err = badgerwallet.NewWallet(c.DbDir, log.New())
	case "sqlite":
		svc, err = sqlitewallet.NewWallet(filepath.Join(c.DbDir, walletDbFile))
	default:
		err = fmt.Errorf("unknown db type")
	}
	if err != nil {
		return fmt.Errorf("failed to open wallet: %w", err)
	}

	c.wallet = svc
	return nil
}

func (c *Config) liveStoreService() error {
	var liveStoreSvc ports.LiveStore
	var err error
	switch c.LiveStoreType {
	case "inmemory", "":
		liveStoreSvc = inmemorylivestore.NewLiveStore()
	case "redis":
		redisOpts, err := redis.ParseURL(c.RedisUrl)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		liveStoreSvc = redislivestore.NewLiveStore(rdb, c.RedisTxNumOfRetries)
	default:
		err = fmt.Errorf("unknown liveStore type")
	}

	if err != nil {
		return err
	}

	c.liveStore = liveStoreSvc
	return nil
}

func (c *Config) schedulerService() error {
	var svc ports.SchedulerService
	var err error
	switch c.SchedulerType {
	case "gocron":
		svc = timescheduler.NewScheduler()
	default:
		err = fmt.Errorf("unknown scheduler type")
	}
	if err != nil {
		return err
	}

	c.scheduler = svc
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(
		c.wallet, c.repo, c.liveStore, c.scheduler, clock.NewDefaultClock(),
		c.Owner, c.TicketPrice, time.Duration(c.RoundDuration)*time.Second,
		c.BaseURI, c.TicketLedgerAddress, application.DrawPolicy(c.DrawPolicy), c.AutoDraw,
		c.EventsBufferSize,
	)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

func (c *Config) adminService() error {
	c.adminSvc = application.NewAdminService(c.wallet, c.repo, c.liveStore)
	return nil
}

// deriveLedgerAddress gives a stable identifier to the ticket ledger of a
// deployment when none is configured.
func deriveLedgerAddress(owner, datadir string) string {
	buf := sha256.Sum256([]byte("lotteryd/ledger/" + owner + "/" + datadir))
	return "ledger1" + hex.EncodeToString(buf[:20])
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
