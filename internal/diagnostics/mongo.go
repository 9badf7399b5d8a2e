package diagnostics

import (
	"context"
	"net"
	"net/url"

	"mongodoctor/internal/connstr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// defaultDatabase is what the server uses when the URI names no database.
const defaultDatabase = "test"

// MongoConnector opens real driver clients.
type MongoConnector struct{}

func (MongoConnector) Open(ctx context.Context, uri string, opts ConnectOptions) (Session, error) {
	co := clientOptions(uri, opts)
	if err := co.Validate(); err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, co)
	if err != nil {
		return nil, err
	}
	return &mongoSession{client: client, uri: uri}, nil
}

func clientOptions(uri string, opts ConnectOptions) *options.ClientOptions {
	co := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(opts.ServerSelectionTimeout).
		SetSocketTimeout(opts.SocketTimeout).
		SetConnectTimeout(opts.ConnectTimeout).
		SetMaxPoolSize(opts.MaxPoolSize).
		SetWriteConcern(writeConcern(opts))
	if opts.ForceIPv4 {
		co.SetDialer(ipv4Dialer{d: &net.Dialer{Timeout: opts.ConnectTimeout}})
	}
	return co
}

func writeConcern(opts ConnectOptions) *writeconcern.WriteConcern {
	if opts.WriteMajority {
		return writeconcern.Majority()
	}
	return &writeconcern.WriteConcern{W: opts.WriteNodes}
}

// ipv4Dialer pins every TCP dial to IPv4.
type ipv4Dialer struct {
	d *net.Dialer
}

func (v ipv4Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch network {
	case "tcp", "tcp6":
		network = "tcp4"
	}
	return v.d.DialContext(ctx, network, address)
}

type mongoSession struct {
	client *mongo.Client
	uri    string
}

type helloReply struct {
	Me      string `bson:"me"`
	SetName string `bson:"setName"`
}

// Handshake pings the primary and asks it which member answered. The hello
// command is informational; only the ping decides success.
func (s *mongoSession) Handshake(ctx context.Context) (HandshakeInfo, error) {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return HandshakeInfo{}, err
	}

	info := HandshakeInfo{Database: databaseName(s.uri)}
	var hello helloReply
	err := s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		// servers before 4.4.2 only know isMaster
		err = s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "isMaster", Value: 1}}).Decode(&hello)
	}
	if err == nil {
		info.Host = hello.Me
		info.ReplicaSet = hello.SetName
	}
	if info.Host == "" {
		if hosts := connstr.Hosts(s.uri); len(hosts) > 0 {
			info.Host = hosts[0]
		}
	}
	return info, nil
}

func (s *mongoSession) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func databaseName(uri string) string {
	db := connstr.Database(uri)
	if unescaped, err := url.PathUnescape(db); err == nil {
		db = unescaped
	}
	if db == "" {
		return defaultDatabase
	}
	return db
}
