package network

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	sq "github.com/Masterminds/squirrel"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/status-im/nodemanager/rpc/node"
	"github.com/status-im/nodemanager/sqlite"
)

const (
	nodesTable    = "rpc_nodes"
	settingsTable = "rpc_node_settings"

	selectedNodeKey = "selected_node"
)

// ErrNodeNotFound is returned when an address is not registered.
var ErrNodeNotFound = errors.New("node not found")

// BlockHashReader reads the genesis hash from the node the app is connected to.
type BlockHashReader interface {
	BlockHash(ctx context.Context) (string, error)
}

// Manager is the node registry: the ordered catalog of RPC nodes and the
// node the user selected. Readers subscribe to change notifications and
// re-read Nodes and SelectedNode.
type Manager struct {
	db      *sql.DB
	reader  BlockHashReader
	fetcher *DefaultNodesFetcher
	logger  *zap.Logger

	mu          sync.Mutex
	subscribers []chan struct{}
}

func NewManager(db *sql.DB, reader BlockHashReader, fetcher *DefaultNodesFetcher, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:      db,
		reader:  reader,
		fetcher: fetcher,
		logger:  logger.Named("network"),
	}
}

// Init seeds an empty registry with nodes, keeping their order.
func (nm *Manager) Init(nodes []node.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	current, err := nm.Nodes()
	if err != nil {
		return err
	}
	if len(current) > 0 {
		return nil
	}

	for i := range nodes {
		err = multierr.Append(err, nm.insert(nm.db, nodes[i], i))
	}
	if err != nil {
		return err
	}

	nm.notify()
	return nil
}

// Upsert adds n at the end of the catalog, or renames it if already registered.
func (nm *Manager) Upsert(n node.Node) error {
	if err := nm.upsert(n); err != nil {
		return err
	}
	nm.notify()
	return nil
}

func (nm *Manager) upsert(n node.Node) error {
	nodes, err := nm.Nodes()
	if err != nil {
		return err
	}

	if existing, ok := node.FindByAddress(nodes, n.Address); ok {
		query, args, err := sq.Update(nodesTable).
			Set("name", n.Name).
			Where(sq.Eq{"address": existing.Address}).
			ToSql()
		if err != nil {
			return err
		}
		_, err = nm.db.Exec(query, args...)
		return pkgerrors.Wrap(err, "update node")
	}

	position, err := nm.nextPosition()
	if err != nil {
		return err
	}
	return nm.insert(nm.db, n, position)
}

func (nm *Manager) insert(creator sqlite.StatementCreator, n node.Node, position int) error {
	query, args, err := sq.Insert(nodesTable).
		Columns("address", "name", "position").
		Values(n.Address, n.Name, position).
		ToSql()
	if err != nil {
		return err
	}

	stmt, err := creator.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(args...)
	return pkgerrors.Wrapf(err, "insert node %s", n.Address)
}

func (nm *Manager) nextPosition() (int, error) {
	query, args, err := sq.Select("COALESCE(MAX(position) + 1, 0)").From(nodesTable).ToSql()
	if err != nil {
		return 0, err
	}
	var position int
	err = nm.db.QueryRow(query, args...).Scan(&position)
	return position, err
}

// Delete removes the node registered under address.
func (nm *Manager) Delete(address string) error {
	n, err := nm.Find(address)
	if err != nil {
		return err
	}

	query, args, err := sq.Delete(nodesTable).Where(sq.Eq{"address": n.Address}).ToSql()
	if err != nil {
		return err
	}
	if _, err = nm.db.Exec(query, args...); err != nil {
		return pkgerrors.Wrap(err, "delete node")
	}

	nm.notify()
	return nil
}

// Find returns the node registered under address, using node.SameAddress.
func (nm *Manager) Find(address string) (*node.Node, error) {
	nodes, err := nm.Nodes()
	if err != nil {
		return nil, err
	}
	n, ok := node.FindByAddress(nodes, address)
	if !ok {
		return nil, ErrNodeNotFound
	}
	return &n, nil
}

// Nodes returns the catalog in registry order with IsSelected filled in.
func (nm *Manager) Nodes() ([]node.Node, error) {
	query, args, err := sq.Select("address", "name").
		From(nodesTable).
		OrderBy("position ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := nm.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []node.Node
	for rows.Next() {
		n := node.Node{}
		if err := rows.Scan(&n.Address, &n.Name); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	selected, err := nm.LastSelectedAddress()
	if err != nil {
		return nil, err
	}
	for i := range res {
		res[i].IsSelected = selected != "" && res[i].Is(selected)
	}

	return res, nil
}

// SelectedNode returns the selected node, or nil if none was ever selected
// or the selected node was removed from the catalog.
func (nm *Manager) SelectedNode() (*node.Node, error) {
	nodes, err := nm.Nodes()
	if err != nil {
		return nil, err
	}
	for i := range nodes {
		if nodes[i].IsSelected {
			return &nodes[i], nil
		}
	}
	return nil, nil
}

// SelectNode persists n as the selected node. Unknown nodes are added to
// the catalog first.
func (nm *Manager) SelectNode(n node.Node) error {
	nodes, err := nm.Nodes()
	if err != nil {
		return err
	}

	address := n.Address
	if existing, ok := node.FindByAddress(nodes, n.Address); ok {
		address = existing.Address
	} else if err := nm.upsert(n); err != nil {
		return err
	}

	query, args, err := sq.Insert(settingsTable).
		Columns("key", "value").
		Values(selectedNodeKey, address).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := nm.db.Exec(query, args...); err != nil {
		return pkgerrors.Wrap(err, "select node")
	}

	nm.logger.Debug("node selected", zap.String("address", address))
	nm.notify()
	return nil
}

// LastSelectedAddress returns the persisted selected address, or "" if none.
func (nm *Manager) LastSelectedAddress() (string, error) {
	query, args, err := sq.Select("value").
		From(settingsTable).
		Where(sq.Eq{"key": selectedNodeKey}).
		ToSql()
	if err != nil {
		return "", err
	}

	var address string
	err = nm.db.QueryRow(query, args...).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return address, err
}

// FetchDefaultNodes downloads the default catalog and merges it into the registry.
func (nm *Manager) FetchDefaultNodes(ctx context.Context) ([]node.Node, error) {
	if nm.fetcher == nil {
		return nil, errors.New("default nodes fetcher is not configured")
	}

	nodes, err := nm.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		err = multierr.Append(err, nm.upsert(n))
	}
	nm.notify()
	if err != nil {
		return nil, err
	}

	return nm.Nodes()
}

// BlockHash reads the genesis hash from the currently connected node.
func (nm *Manager) BlockHash(ctx context.Context) (string, error) {
	if nm.reader == nil {
		return "", errors.New("block hash reader is not configured")
	}
	return nm.reader.BlockHash(ctx)
}

// Subscribe returns a channel signalled after every registry change.
// Notifications coalesce, readers re-read the registry on wake up.
func (nm *Manager) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.subscribers = append(nm.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber from receiving notifications.
func (nm *Manager) Unsubscribe(ch chan struct{}) {
	nm.mu.Lock()
	defer nm.mu.Unlock()

	for i, subscriber := range nm.subscribers {
		if subscriber == ch {
			nm.subscribers = append(nm.subscribers[:i], nm.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (nm *Manager) notify() {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	for _, subscriber := range nm.subscribers {
		select {
		case subscriber <- struct{}{}:
		default:
			// a notification is already pending
		}
	}
}
