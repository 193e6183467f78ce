package orderevents

const (
	TopicName              = "order"
	orderStatusChangedName = TopicName + ".statusChanged"
)

type OrderStatusChanged struct {
	OrderUID   string
	ShopperUID string
	OldStatus  string
	NewStatus  string
}

func (e OrderStatusChanged) GetEventTypeName() string {
	return orderStatusChangedName
}

func (e OrderStatusChanged) GetAggregateName() string {
	return e.OrderUID
}
