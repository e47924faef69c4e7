package orders

import "strconv"

const (
	TopicOrderPlaced    = "order.placed"
	TopicOrderStatus    = "order.status"
	TopicInventoryStock = "inventory.stock"
)

// Partition key = id entitas (order_id / product_id), supaya urutan event per entitas terjaga.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
