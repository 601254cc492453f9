package market

const (
	TopicRequestCreated  = "market.request.created"
	TopicRequestStatus   = "market.request.status"
	TopicRequestDeleted  = "market.request.deleted"
	TopicDemandCompleted = "market.demand.completed"
	TopicOrderCreated    = "market.order.created"
	TopicOrderStatus     = "market.order.status"
	TopicOrderDeleted    = "market.order.deleted"
)

// Topics consumed by the projector to keep the status read model warm.
var ProjectorTopics = []string{
	TopicRequestCreated,
	TopicRequestStatus,
	TopicRequestDeleted,
	TopicDemandCompleted,
	TopicOrderCreated,
	TopicOrderStatus,
	TopicOrderDeleted,
}
