package pg

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/rdsutils"

	_ "github.com/newrelic/go-agent/v3/integrations/nrpgx"
)

// Connections go through the New Relic instrumented pgx driver
const driverName = "nrpgx"

// Config locates a database and sizes its connection pool. Zero pool sizes
// keep database/sql's defaults.
type Config struct {
	User     string
	Password string
	Host     string
	Port     int
	DbName   string

	MaxOpenConnections int
	MaxIdleConnections int
}

func (c *Config) endpoint() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewWithUsernameAndPassword opens a connection pool authenticated with the
// configured password.
func NewWithUsernameAndPassword(c *Config) (*sql.DB, error) {
	dsn := (&url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.endpoint(),
		Path:     "/" + c.DbName,
		RawQuery: "sslmode=disable",
	}).String()

	return open(dsn, c)
}

// NewWithAwsIam opens a connection pool authenticated with an RDS IAM token
// in place of a password. Only provisioned RDS instances support IAM auth.
//
// https://docs.aws.amazon.com/AmazonRDS/latest/AuroraUserGuide/UsingWithRDS.IAMDBAuth.Connecting.Go.html
func NewWithAwsIam(c *Config, awsConfig aws.Config) (*sql.DB, error) {
	rdsClient := rds.New(awsConfig)

	authToken, err := rdsutils.BuildAuthToken(c.endpoint(), rdsClient.Region, c.User, rdsClient.Credentials)
	if err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, authToken, c.DbName,
	)
	return open(dsn, c)
}

func open(dsn string, c *Config) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if c.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(c.MaxOpenConnections)
	}
	if c.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(c.MaxIdleConnections)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
