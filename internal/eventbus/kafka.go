package eventbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"medmarket/internal/domain"
)

// Publisher шина событий заказов. При пустом списке брокеров публикация
// выключена: ядро работает без внешнего I/O, события просто не отправляются.
type Publisher struct {
	writer *kafka.Writer
}

// New создаёт издателя; brokersCSV пустой — издатель выключен
func New(brokersCSV, topic string) *Publisher {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return &Publisher{}
	}
	return &Publisher{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// PublishOrderEvent отправляет событие с ключом order_id. Ошибка публикации
// логируется и не влияет на исход операции ядра.
func (p *Publisher) PublishOrderEvent(ctx context.Context, ev domain.OrderEvent) {
	if !p.Enabled() {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Msg("marshal order event")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg := kafka.Message{Key: []byte(ev.OrderID), Value: data, Time: time.Now().UTC()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Error().Err(err).Str("order_id", ev.OrderID).Str("type", string(ev.Type)).Msg("publish order event")
	}
}

// Close закрывает writer при останове
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
