package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sruthreads/storefront_backend/config"
	"github.com/sruthreads/storefront_backend/gateway"
	"github.com/sruthreads/storefront_backend/models"
	"gorm.io/gorm"
)

// stubGateway satisfies gateway.Client without network calls and counts how
// often the gateway is actually hit.
type stubGateway struct {
	mu           sync.Mutex
	createCalls  int
	statusCalls  int
	status       string
	failCreate   bool
	lastOrderIds []string
}

func (s *stubGateway) CreateSession(ctx context.Context, creds gateway.Credentials, orderNumber string,
	amount decimal.Decimal, customer gateway.Customer) (*gateway.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	s.lastOrderIds = append(s.lastOrderIds, orderNumber)
	if s.failCreate {
		return nil, &gateway.GatewayError{Op: "create session", Reason: "stub failure"}
	}
	return &gateway.Session{
		SessionId:      "session-" + orderNumber,
		GatewayOrderId: "cf-" + orderNumber,
	}, nil
}

func (s *stubGateway) FetchStatus(ctx context.Context, creds gateway.Credentials, orderNumber string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if s.status == "" {
		return "ACTIVE", nil
	}
	return s.status, nil
}

func setupIntegration(t *testing.T) {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "storefront_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()
}

func seedStore(t *testing.T) *models.Store {
	t.Helper()
	db := config.GetDB()
	store := &models.Store{
		ID:          uuid.NewString(),
		Name:        "Sru Threads",
		Code:        "SRU",
		Mobile:      "+91" + fmt.Sprintf("%010d", time.Now().UnixNano()%1e10),
		Region:      "IN",
		ProductCode: "SKU",
		GatewayName: "cashfree",
		IsActive:    true,
	}
	if err := db.Create(store).Error; err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func seedUserWithAddress(t *testing.T, storeId string) (*models.User, *models.Address) {
	t.Helper()
	db := config.GetDB()
	user := &models.User{
		ID:      uuid.NewString(),
		StoreId: storeId,
		Name:    "Asha",
		Mobile:  "9876543210",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	address := &models.Address{
		ID:      uuid.NewString(),
		StoreId: storeId,
		UserId:  user.ID,
		Name:    "Asha",
		Mobile:  "9876543210",
		Line1:   "12 Gandhi Road",
		City:    "Chennai",
		State:   "TN",
		Pincode: "600001",
	}
	if err := db.Create(address).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return user, address
}

func seedProduct(t *testing.T, storeId string, sku string, price string, stock int64) *models.Product {
	t.Helper()
	db := config.GetDB()
	product := &models.Product{
		ID:           uuid.NewString(),
		StoreId:      storeId,
		Name:         "Product " + sku,
		Sku:          sku,
		Mrp:          decimal.RequireFromString(price),
		SellingPrice: decimal.RequireFromString(price),
		CurrentStock: stock,
		IsActive:     true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// Two checkouts race for the last unit: exactly one succeeds, the other
// fails with OutOfStock, and stock never goes negative.
func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	setupIntegration(t)
	store := seedStore(t)
	user, address := seedUserWithAddress(t, store.ID)
	product := seedProduct(t, store.ID, "LAST-UNIT", "100.00", 1)

	gw := &stubGateway{}
	input := models.CheckoutInput{
		AddressId: address.ID,
		Products:  []models.CheckoutProduct{{ProductId: product.ID, Quantity: 1}},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = models.InitiateOrder(context.Background(), store, user.ID, input, gw, user.ID)
		}(i)
	}
	wg.Wait()

	var successes, outOfStock int
	for _, err := range errs {
		switch err {
		case nil:
			successes++
		case models.ErrOutOfStock:
			outOfStock++
		default:
			t.Fatalf("unexpected checkout error: %v", err)
		}
	}
	if successes != 1 || outOfStock != 1 {
		t.Fatalf("expected exactly one success and one OutOfStock; got %d/%d", successes, outOfStock)
	}

	var remaining models.Product
	if err := config.GetDB().Where("id = ?", product.ID).First(&remaining).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if remaining.CurrentStock != 0 {
		t.Fatalf("expected stock 0; got %d", remaining.CurrentStock)
	}
}

// Two concurrent checkouts listing the same products in opposite order must
// both succeed: product rows are locked in a canonical order, so neither
// transaction can deadlock against the other.
func TestCheckout_OppositeOrderingsDoNotDeadlock(t *testing.T) {
	setupIntegration(t)
	store := seedStore(t)
	user, address := seedUserWithAddress(t, store.ID)
	first := seedProduct(t, store.ID, "PAIR-A", "100.00", 50)
	second := seedProduct(t, store.ID, "PAIR-B", "200.00", 50)

	gw := &stubGateway{}
	forward := models.CheckoutInput{
		AddressId: address.ID,
		Products: []models.CheckoutProduct{
			{ProductId: first.ID, Quantity: 1},
			{ProductId: second.ID, Quantity: 1},
		},
	}
	reverse := models.CheckoutInput{
		AddressId: address.ID,
		Products: []models.CheckoutProduct{
			{ProductId: second.ID, Quantity: 1},
			{ProductId: first.ID, Quantity: 1},
		},
	}

	const rounds = 10
	errs := make([]error, 2*rounds)
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, errs[2*i] = models.InitiateOrder(context.Background(), store, user.ID, forward, gw, user.ID)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, errs[2*i+1] = models.InitiateOrder(context.Background(), store, user.ID, reverse, gw, user.ID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("checkout %d failed: %v", i, err)
		}
	}
}

// A gateway failure rolls back the whole checkout: no order, no payment, and
// the stock decrement is undone.
func TestCheckout_GatewayFailureRollsBack(t *testing.T) {
	setupIntegration(t)
	store := seedStore(t)
	user, address := seedUserWithAddress(t, store.ID)
	product := seedProduct(t, store.ID, "GW-FAIL", "50.00", 5)

	gw := &stubGateway{failCreate: true}
	_, err := models.InitiateOrder(context.Background(), store, user.ID, models.CheckoutInput{
		AddressId: address.ID,
		Products:  []models.CheckoutProduct{{ProductId: product.ID, Quantity: 2}},
	}, gw, user.ID)
	if err == nil {
		t.Fatal("expected gateway failure")
	}

	db := config.GetDB()
	var orderCount, paymentCount int64
	db.Model(&models.Order{}).Where("store_id = ?", store.ID).Count(&orderCount)
	db.Model(&models.Payment{}).Where("store_id = ?", store.ID).Count(&paymentCount)
	if orderCount != 0 || paymentCount != 0 {
		t.Fatalf("expected no persisted rows; got orders=%d payments=%d", orderCount, paymentCount)
	}

	var remaining models.Product
	if err := db.Where("id = ?", product.ID).First(&remaining).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if remaining.CurrentStock != 5 {
		t.Fatalf("expected stock restored to 5; got %d", remaining.CurrentStock)
	}
}

// The SAVE10 flow end to end: 10% of 300.00 capped to 5.00, the single line
// item carries the whole discount, and the coupon usage row appears only
// after the success webhook, together with cart clearing. A replayed webhook
// and a later status poll change nothing and never hit the gateway again.
func TestCheckoutAndWebhook_CouponLifecycle(t *testing.T) {
	setupIntegration(t)
	store := seedStore(t)
	user, address := seedUserWithAddress(t, store.ID)
	product := seedProduct(t, store.ID, "SAVE10-P", "100.00", 5)

	db := config.GetDB()
	coupon := &models.Coupon{
		ID:                uuid.NewString(),
		StoreId:           store.ID,
		Code:              "SAVE10",
		TargetType:        models.CouponTargetOrder,
		Discount:          models.DiscountPercentage,
		DiscountValue:     decimal.RequireFromString("10"),
		MaxDiscountAmount: decimal.NullDecimal{Decimal: decimal.RequireFromString("5.00"), Valid: true},
		MinOrderAmount:    decimal.RequireFromString("50.00"),
		StartDate:         time.Now().Add(-time.Hour),
		EndDate:           time.Now().Add(time.Hour),
		IsActive:          true,
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	if _, err := models.UpsertCartLine(context.Background(), store.ID, user.ID, product.ID, 3); err != nil {
		t.Fatalf("fill cart: %v", err)
	}

	gw := &stubGateway{}
	result, err := models.InitiateOrder(context.Background(), store, user.ID, models.CheckoutInput{
		AddressId:  address.ID,
		Products:   []models.CheckoutProduct{{ProductId: product.ID, Quantity: 3}},
		CouponCode: "save10",
	}, gw, user.ID)
	if err != nil {
		t.Fatalf("InitiateOrder: %v", err)
	}
	if !result.Amount.Equal(decimal.RequireFromString("295.00")) {
		t.Fatalf("expected amount 295.00; got %s", result.Amount)
	}

	order, err := models.GetOrderByNumber(context.Background(), result.OrderNumber)
	if err != nil {
		t.Fatalf("GetOrderByNumber: %v", err)
	}
	if !order.CouponDiscount.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("expected discount 5.00; got %s", order.CouponDiscount)
	}

	var items []models.OrderLineItem
	if err := db.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		t.Fatalf("load line items: %v", err)
	}
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.ApportionedDiscount)
	}
	if !sum.Equal(order.CouponDiscount) {
		t.Fatalf("apportioned sum %s != coupon discount %s", sum, order.CouponDiscount)
	}

	// No usage row before payment confirmation.
	var usageCount int64
	db.Model(&models.CouponUsage{}).Where("coupon_id = ?", coupon.ID).Count(&usageCount)
	if usageCount != 0 {
		t.Fatalf("usage row written before payment: %d", usageCount)
	}

	payload := models.WebhookPayload{Type: "PAYMENT_SUCCESS_WEBHOOK"}
	payload.Data.Order.OrderId = result.OrderNumber
	payload.Data.Order.OrderAmount = result.Amount
	models.ReconcileWebhook(context.Background(), payload)

	order, err = models.GetOrderByNumber(context.Background(), result.OrderNumber)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != models.OrderStatusPlaced {
		t.Fatalf("expected PLACED; got %s", order.Status)
	}
	if !order.PaidOnline.Equal(result.Amount) {
		t.Fatalf("expected paid_online %s; got %s", result.Amount, order.PaidOnline)
	}

	db.Model(&models.CouponUsage{}).Where("coupon_id = ?", coupon.ID).Count(&usageCount)
	if usageCount != 1 {
		t.Fatalf("expected one usage row; got %d", usageCount)
	}

	var cartCount int64
	db.Model(&models.CartLine{}).Where("store_id = ? AND user_id = ?", store.ID, user.ID).Count(&cartCount)
	if cartCount != 0 {
		t.Fatalf("cart not cleared: %d rows", cartCount)
	}

	// Replay: terminal payment short-circuits, no duplicate usage.
	models.ReconcileWebhook(context.Background(), payload)
	db.Model(&models.CouponUsage{}).Where("coupon_id = ?", coupon.ID).Count(&usageCount)
	if usageCount != 1 {
		t.Fatalf("duplicate usage row after webhook replay: %d", usageCount)
	}

	// Status poll after webhook completion must not touch the gateway.
	outcome, err := models.CheckPaymentStatus(context.Background(), store, result.OrderNumber, gw)
	if err != nil {
		t.Fatalf("CheckPaymentStatus: %v", err)
	}
	if outcome.PaymentStatus != models.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED; got %s", outcome.PaymentStatus)
	}
	if gw.statusCalls != 0 {
		t.Fatalf("status poll hit the gateway %d times after completion", gw.statusCalls)
	}
}

// N concurrent sequence calls return N distinct values.
func TestNextSequence_ConcurrentUniqueness(t *testing.T) {
	setupIntegration(t)
	store := seedStore(t)
	db := config.GetDB()

	// Provision the row first so concurrent first-claim inserts don't race.
	if err := db.Create(&models.StoreSequence{StoreId: store.ID, Kind: "order"}).Error; err != nil {
		t.Fatalf("seed sequence: %v", err)
	}

	const n = 20
	values := make([]uint64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = db.Transaction(func(tx *gorm.DB) error {
				v, err := models.NextSequence(tx, store.ID, models.SequenceKindOrder)
				values[i] = v
				return err
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("NextSequence[%d]: %v", i, errs[i])
		}
		if seen[values[i]] {
			t.Fatalf("duplicate sequence value %d", values[i])
		}
		seen[values[i]] = true
	}
}

// A user with a prior DELIVERED order cannot redeem a first-order coupon.
func TestCoupon_FirstOrderOnly(t *testing.T) {
	setupIntegration(t)
	store := seedStore(t)
	user, address := seedUserWithAddress(t, store.ID)
	product := seedProduct(t, store.ID, "FIRST50-P", "100.00", 10)

	db := config.GetDB()
	coupon := &models.Coupon{
		ID:             uuid.NewString(),
		StoreId:        store.ID,
		Code:           "FIRST50",
		TargetType:     models.CouponTargetOrder,
		Discount:       models.DiscountFlat,
		DiscountValue:  decimal.RequireFromString("50.00"),
		FirstOrderOnly: true,
		StartDate:      time.Now().Add(-time.Hour),
		EndDate:        time.Now().Add(time.Hour),
		IsActive:       true,
	}
	if err := db.Create(coupon).Error; err != nil {
		t.Fatalf("seed coupon: %v", err)
	}

	gw := &stubGateway{}
	input := models.CheckoutInput{
		AddressId:  address.ID,
		Products:   []models.CheckoutProduct{{ProductId: product.ID, Quantity: 1}},
		CouponCode: "FIRST50",
	}

	// Fresh user: redeemable.
	if _, err := models.InitiateOrder(context.Background(), store, user.ID, input, gw, user.ID); err != nil {
		t.Fatalf("fresh user should redeem FIRST50: %v", err)
	}

	// Simulate a completed prior order.
	if err := db.Create(&models.Order{
		ID:              uuid.NewString(),
		StoreId:         store.ID,
		UserId:          user.ID,
		OrderNumber:     "ORD-SRU-999999",
		MrpTotal:        decimal.RequireFromString("100.00"),
		SellingSubtotal: decimal.RequireFromString("100.00"),
		Amount:          decimal.RequireFromString("100.00"),
		Status:          models.OrderStatusDelivered,
	}).Error; err != nil {
		t.Fatalf("seed delivered order: %v", err)
	}

	_, err := models.InitiateOrder(context.Background(), store, user.ID, input, gw, user.ID)
	if err != models.ErrCouponNotEligible {
		t.Fatalf("expected ErrCouponNotEligible; got %v", err)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("storefront-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("storefront-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=storefront_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
