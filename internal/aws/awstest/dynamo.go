// Package awstest provides an in-memory DynamoDB double for store tests.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// DynamoDB stores items per table keyed by the table's partition key attribute.
// It understands the small expression grammar the stores use:
//
//	attribute_exists(a) | attribute_not_exists(a) | x = y | x < y, joined with OR
//	SET a = :v, #b = :w
//	#k = :v (Query key condition, on the table or any index)
type DynamoDB struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]item

	// FailOn, when set, is consulted before every call. A non-nil return is
	// handed back to the caller and the call has no effect.
	FailOn func(op, table string) error

	// PageSize, when positive, caps every Query and Scan page; callers must
	// follow LastEvaluatedKey to see the rest.
	PageSize int

	Calls map[string]int
}

// NewDynamoDB returns a fake with the given table -> partition key attribute mapping.
func NewDynamoDB(keys map[string]string) *DynamoDB {
	return &DynamoDB{
		keys:   keys,
		tables: map[string]map[string]item{},
		Calls:  map[string]int{},
	}
}

// Items returns a snapshot of every item in table, ordered by key.
func (d *DynamoDB) Items(table string) []map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sorted(table, nil)
}

// Seed writes an item without evaluating conditions.
func (d *DynamoDB) Seed(table string, it map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pk, err := d.pk(table, it)
	if err != nil {
		panic(err)
	}
	d.table(table)[pk] = clone(it)
}

func (d *DynamoDB) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := sdkaws.ToString(params.TableName)
	if err := d.before("PutItem", table); err != nil {
		return nil, err
	}
	pk, err := d.pk(table, params.Item)
	if err != nil {
		return nil, err
	}
	existing := d.table(table)[pk]
	ok, err := evalCondition(params.ConditionExpression, existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	d.table(table)[pk] = clone(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *DynamoDB) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := sdkaws.ToString(params.TableName)
	if err := d.before("GetItem", table); err != nil {
		return nil, err
	}
	pk, err := d.pk(table, params.Key)
	if err != nil {
		return nil, err
	}
	it, ok := d.table(table)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(it)}, nil
}

func (d *DynamoDB) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := sdkaws.ToString(params.TableName)
	if err := d.before("UpdateItem", table); err != nil {
		return nil, err
	}
	pk, err := d.pk(table, params.Key)
	if err != nil {
		return nil, err
	}
	existing := d.table(table)[pk]
	ok, err := evalCondition(params.ConditionExpression, existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}

	updated := clone(existing)
	if updated == nil {
		updated = clone(params.Key)
	}
	expr := strings.TrimSpace(sdkaws.ToString(params.UpdateExpression))
	if !strings.HasPrefix(expr, "SET ") {
		return nil, fmt.Errorf("awstest: unsupported update expression %q", expr)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("awstest: bad assignment %q", assign)
		}
		name := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
		v, ok := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("awstest: missing value for %q", parts[1])
		}
		updated[name] = v
	}
	d.table(table)[pk] = updated
	return &dyn.UpdateItemOutput{Attributes: clone(updated)}, nil
}

func (d *DynamoDB) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := sdkaws.ToString(params.TableName)
	if err := d.before("DeleteItem", table); err != nil {
		return nil, err
	}
	pk, err := d.pk(table, params.Key)
	if err != nil {
		return nil, err
	}
	existing := d.table(table)[pk]
	ok, err := evalCondition(params.ConditionExpression, existing, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionFailed()
	}
	delete(d.table(table), pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (d *DynamoDB) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := sdkaws.ToString(params.TableName)
	if err := d.before("Query", table); err != nil {
		return nil, err
	}
	parts := strings.SplitN(sdkaws.ToString(params.KeyConditionExpression), "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("awstest: unsupported key condition %q", sdkaws.ToString(params.KeyConditionExpression))
	}
	attr := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
	want := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	items := d.sorted(table, func(it item) bool {
		return equal(it[attr], want)
	})
	items, last := d.page(table, items, params.ExclusiveStartKey, params.Limit)
	return &dyn.QueryOutput{Items: items, Count: int32(len(items)), LastEvaluatedKey: last}, nil
}

func (d *DynamoDB) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	table := sdkaws.ToString(params.TableName)
	if err := d.before("Scan", table); err != nil {
		return nil, err
	}
	items, last := d.page(table, d.sorted(table, nil), params.ExclusiveStartKey, params.Limit)
	return &dyn.ScanOutput{Items: items, Count: int32(len(items)), LastEvaluatedKey: last}, nil
}

// TransactWriteItems applies Put and Delete actions all-or-nothing.
func (d *DynamoDB) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.before("TransactWriteItems", ""); err != nil {
		return nil, err
	}

	type action struct {
		table, pk string
		put       item
	}
	actions := make([]action, 0, len(params.TransactItems))
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false

	for i, ti := range params.TransactItems {
		var (
			table  string
			key    item
			cond   *string
			names  map[string]string
			values map[string]types.AttributeValue
			put    item
		)
		switch {
		case ti.Put != nil:
			table, key, put = sdkaws.ToString(ti.Put.TableName), ti.Put.Item, ti.Put.Item
			cond, names, values = ti.Put.ConditionExpression, ti.Put.ExpressionAttributeNames, ti.Put.ExpressionAttributeValues
		case ti.Delete != nil:
			table, key = sdkaws.ToString(ti.Delete.TableName), ti.Delete.Key
			cond, names, values = ti.Delete.ConditionExpression, ti.Delete.ExpressionAttributeNames, ti.Delete.ExpressionAttributeValues
		default:
			return nil, errors.New("awstest: only Put and Delete are supported in transactions")
		}
		pk, err := d.pk(table, key)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(cond, d.table(table)[pk], names, values)
		if err != nil {
			return nil, err
		}
		reasons[i] = types.CancellationReason{Code: sdkaws.String("None")}
		if !ok {
			canceled = true
			reasons[i] = types.CancellationReason{Code: sdkaws.String("ConditionalCheckFailed")}
		}
		actions = append(actions, action{table: table, pk: pk, put: put})
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             sdkaws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}
	for _, a := range actions {
		if a.put != nil {
			d.table(a.table)[a.pk] = clone(a.put)
		} else {
			delete(d.table(a.table), a.pk)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *DynamoDB) before(op, table string) error {
	d.Calls[op]++
	if d.FailOn != nil {
		return d.FailOn(op, table)
	}
	return nil
}

func (d *DynamoDB) table(name string) map[string]item {
	t, ok := d.tables[name]
	if !ok {
		t = map[string]item{}
		d.tables[name] = t
	}
	return t
}

func (d *DynamoDB) pk(table string, it item) (string, error) {
	attr, ok := d.keys[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %q", table)
	}
	v, ok := it[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("awstest: item for %q has no string key %q", table, attr)
	}
	return v.Value, nil
}

func (d *DynamoDB) sorted(table string, keep func(item) bool) []map[string]types.AttributeValue {
	t := d.table(table)
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		if keep == nil || keep(t[id]) {
			out = append(out, clone(t[id]))
		}
	}
	return out
}

// page skips items up to and including start, then cuts the result at the
// smaller of limit and PageSize. Items arrive sorted by partition key.
func (d *DynamoDB) page(table string, items []item, start item, limit *int32) ([]item, item) {
	attr := d.keys[table]
	if from, ok := start[attr].(*types.AttributeValueMemberS); ok {
		i := 0
		for i < len(items) {
			if v, ok := items[i][attr].(*types.AttributeValueMemberS); ok && v.Value > from.Value {
				break
			}
			i++
		}
		items = items[i:]
	}

	size := d.PageSize
	if limit != nil && (size <= 0 || int(*limit) < size) {
		size = int(*limit)
	}
	if size <= 0 || len(items) <= size {
		return items, nil
	}
	items = items[:size]
	return items, item{attr: items[size-1][attr]}
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: sdkaws.String("The conditional request failed")}
}

func evalCondition(expr *string, existing item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " OR ") {
		ok, err := evalClause(strings.TrimSpace(clause), existing, names, values)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func evalClause(clause string, existing item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	switch {
	case strings.HasPrefix(clause, "attribute_not_exists(") && strings.HasSuffix(clause, ")"):
		attr := resolveName(clause[len("attribute_not_exists("):len(clause)-1], names)
		_, ok := existing[attr]
		return !ok, nil
	case strings.HasPrefix(clause, "attribute_exists(") && strings.HasSuffix(clause, ")"):
		attr := resolveName(clause[len("attribute_exists("):len(clause)-1], names)
		_, ok := existing[attr]
		return ok, nil
	}
	for _, op := range []string{"<", "="} {
		parts := strings.SplitN(clause, " "+op+" ", 2)
		if len(parts) != 2 {
			continue
		}
		lhs := existing[resolveName(strings.TrimSpace(parts[0]), names)]
		rhs, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("awstest: missing value %q", parts[1])
		}
		if lhs == nil {
			return false, nil
		}
		if op == "=" {
			return equal(lhs, rhs), nil
		}
		return less(lhs, rhs), nil
	}
	return false, fmt.Errorf("awstest: unsupported condition %q", clause)
}

func resolveName(ref string, names map[string]string) string {
	if strings.HasPrefix(ref, "#") {
		if n, ok := names[ref]; ok {
			return n
		}
	}
	return ref
}

func equal(a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.DeepEqual(a, b)
}

func less(a, b types.AttributeValue) bool {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		x, err1 := strconv.ParseFloat(an.Value, 64)
		y, err2 := strconv.ParseFloat(bn.Value, 64)
		return err1 == nil && err2 == nil && x < y
	}
	as, aok := a.(*types.AttributeValueMemberS)
	bs, bok := b.(*types.AttributeValueMemberS)
	return aok && bok && as.Value < bs.Value
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}
