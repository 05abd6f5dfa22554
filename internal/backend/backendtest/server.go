// Package backendtest runs an in-memory system of record behind an
// httptest.Server for handler and service tests.
package backendtest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/example/washops/backend/internal/models"
)

// Seeded ids.
const (
	CustomerJane    int64 = 42
	CustomerAbebe   int64 = 43
	CarJaneCorolla  int64 = 100
	MakeToyota      int64 = 1
	MakeIsuzu       int64 = 2
	ModelCorolla    int64 = 10
	ServiceExterior int64 = 1
	ServiceInterior int64 = 2
	ServiceEngine   int64 = 3
	StaffKebede     int64 = 5
)

type failure struct {
	status int
	detail string
}

// Server is a fake backend. All exported methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	makes      []models.CarMake
	carModels  map[int64][]models.CarModel
	customers  map[int64]*models.CustomerDetail
	cars       map[int64][]models.Car
	services   []models.Service
	staff      []models.Staff
	jobs       map[int64]*models.Job
	checklists map[int64][]models.QCChecklistEntry
	nextID     int64
	calls      map[string]int
	failures   map[string][]failure
	tokens     []string
}

// New starts a seeded fake backend. Callers close it with Close.
func New() *Server {
	s := &Server{
		makes: []models.CarMake{
			{ID: MakeToyota, Name: "Toyota", IsActive: true},
			{ID: MakeIsuzu, Name: "Isuzu", IsActive: true},
		},
		carModels: map[int64][]models.CarModel{
			MakeToyota: {{ID: ModelCorolla, Name: "Corolla"}, {ID: 11, Name: "Vitz"}},
			MakeIsuzu:  {{ID: 20, Name: "D-Max"}},
		},
		customers: map[int64]*models.CustomerDetail{
			CustomerJane: {
				ID: CustomerJane, CustomerType: models.AccountIndividual,
				FirstName: "Jane", LastName: "Doe", PhoneNumber: "0911000000", Country: "Ethiopia",
			},
			CustomerAbebe: {
				ID: CustomerAbebe, CustomerType: models.AccountCorporate, IsCorporate: true,
				CompanyName: "Abebe Trading", PhoneNumber: "0922000000", Country: "Ethiopia",
			},
		},
		cars: map[int64][]models.Car{
			CustomerJane: {{ID: CarJaneCorolla, Customer: CustomerJane, Make: "Toyota", Model: "Corolla", PlateNumber: "AA-12345", CarType: models.CarTypeSedan}},
		},
		services: []models.Service{
			{ID: ServiceExterior, Name: "Exterior Wash", Price: decimal.NewFromInt(250), IsActive: true},
			{ID: ServiceInterior, Name: "Interior Detail", Price: decimal.RequireFromString("550.25"), IsActive: true},
			{ID: ServiceEngine, Name: "Engine Bay", Price: decimal.NewFromInt(400), IsActive: false},
		},
		staff: []models.Staff{
			{ID: StaffKebede, FirstName: "Kebede", LastName: "Alemu", IsActive: true},
			{ID: 6, FirstName: "Former", LastName: "Worker", IsActive: false},
		},
		jobs:       map[int64]*models.Job{},
		checklists: map[int64][]models.QCChecklistEntry{},
		nextID:     1000,
		calls:      map[string]int{},
		failures:   map[string][]failure{},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	mode := gin.Mode()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	gin.SetMode(mode)

	r.Use(s.intercept)
	r.GET("/customers/search/", s.searchCustomers)
	r.POST("/customers/onboard_individual/", s.onboardIndividual)
	r.POST("/customers/onboard_corporate/", s.onboardCorporate)
	r.GET("/customers/:id/", s.getCustomer)
	r.PATCH("/customers/:id/", s.updateCustomer)
	r.GET("/customers/:id/cars/", s.customerCars)
	r.POST("/customers/:id/add_car/", s.addCar)
	r.GET("/car-makes/", s.listMakes)
	r.GET("/car-makes/:id/models/", s.listModels)
	r.GET("/services/", s.listServices)
	r.GET("/staff/", s.listStaff)
	r.GET("/jobs/", s.listJobs)
	r.POST("/jobs/", s.createJob)
	r.GET("/jobs/:id/", s.getJob)
	r.PATCH("/jobs/:id/", s.patchJob)
	r.POST("/jobs/:id/add_item/", s.addItem)
	r.GET("/jobs/:id/qc_checklist/", s.getChecklist)
	r.POST("/jobs/:id/qc_checklist/", s.updateChecklist)
	r.POST("/tasks/", s.createTask)
	r.POST("/tasks/:id/start/", s.startTask)
	r.POST("/tasks/:id/complete/", s.completeTask)
	return r
}

func (s *Server) intercept(c *gin.Context) {
	key := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.calls[key]++
	s.tokens = append(s.tokens, strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	var fail *failure
	if queue := s.failures[key]; len(queue) > 0 {
		fail = &queue[0]
		s.failures[key] = queue[1:]
	}
	s.mu.Unlock()

	if fail != nil {
		c.AbortWithStatusJSON(fail.status, gin.H{"detail": fail.detail})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Next()
}

// Calls returns how often a route was hit, e.g. Calls("PATCH /jobs/:id/").
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Tokens returns the bearer tokens of every request in arrival order.
func (s *Server) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// FailNext makes the next request to route answer status with detail.
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// PutJob stores job, replacing any job with the same id.
func (s *Server) PutJob(job models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := job
	s.jobs[job.ID] = &cp
}

// SetJobStatus changes a job behind the console's back.
func (s *Server) SetJobStatus(id int64, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
	}
}

// Job returns a copy of a stored job.
func (s *Server) Job(id int64) (models.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Customer returns a copy of a stored customer.
func (s *Server) Customer(id int64) (models.CustomerDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[id]
	if !ok {
		return models.CustomerDetail{}, false
	}
	return *c, true
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
}

func summary(d *models.CustomerDetail) models.Customer {
	return models.Customer{
		ID: d.ID, CustomerType: d.CustomerType, FirstName: d.FirstName, LastName: d.LastName,
		CompanyName: d.CompanyName, PhoneNumber: d.PhoneNumber, Email: d.Email, IsCorporate: d.IsCorporate,
	}
}

func (s *Server) searchCustomers(c *gin.Context) {
	q := strings.ToLower(c.Query("q"))
	results := []models.Customer{}
	for _, d := range s.customers {
		haystack := strings.ToLower(strings.Join([]string{d.FirstName, d.LastName, d.CompanyName, d.PhoneNumber, d.Email}, " "))
		for _, car := range s.cars[d.ID] {
			haystack += " " + strings.ToLower(car.PlateNumber)
		}
		if strings.Contains(haystack, q) {
			results = append(results, summary(d))
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	c.JSON(http.StatusOK, gin.H{"count": len(results), "results": results})
}

func (s *Server) getCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	d, found := s.customers[id]
	if !found {
		notFound(c)
		return
	}
	out := *d
	out.Cars = s.cars[id]
	c.JSON(http.StatusOK, out)
}

func (s *Server) updateCustomer(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	d, found := s.customers[id]
	if !found {
		notFound(c)
		return
	}
	var patch models.CustomerUpdate
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if d.IsCorporate {
		d.CompanyName, d.TINNumber = patch.CompanyName, patch.TINNumber
	} else {
		d.FirstName, d.LastName = patch.FirstName, patch.LastName
		d.DateOfBirth, d.Sex = patch.DateOfBirth, patch.Sex
	}
	d.PhoneNumber, d.Email, d.Address = patch.PhoneNumber, patch.Email, patch.Address
	d.HouseNumber, d.State, d.Country = patch.HouseNumber, patch.State, patch.Country
	c.JSON(http.StatusOK, d)
}

func (s *Server) customerCars(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, found := s.customers[id]; !found {
		notFound(c)
		return
	}
	cars := s.cars[id]
	if cars == nil {
		cars = []models.Car{}
	}
	c.JSON(http.StatusOK, cars)
}

func (s *Server) plateTaken(plate string) bool {
	for _, cars := range s.cars {
		for _, car := range cars {
			if strings.EqualFold(car.PlateNumber, plate) {
				return true
			}
		}
	}
	return false
}

func (s *Server) makeName(id int64, text string) string {
	for _, m := range s.makes {
		if m.ID == id {
			return m.Name
		}
	}
	return text
}

func (s *Server) modelName(makeID, id int64, text string) string {
	for _, m := range s.carModels[makeID] {
		if m.ID == id {
			return m.Name
		}
	}
	return text
}

func (s *Server) registerCar(customerID int64, car models.NewCar) models.Car {
	created := models.Car{
		ID:          s.id(),
		Customer:    customerID,
		Make:        s.makeName(car.Make, car.MakeText),
		Model:       s.modelName(car.Make, car.Model, car.ModelText),
		PlateNumber: car.PlateNumber,
		Color:       car.Color,
		Year:        car.Year,
		CarType:     car.CarType,
	}
	s.cars[customerID] = append(s.cars[customerID], created)
	return created
}

func (s *Server) onboardIndividual(c *gin.Context) {
	var req models.IndividualOnboarding
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if s.plateTaken(req.PlateNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Plate number already exists"})
		return
	}
	id := s.id()
	d := &models.CustomerDetail{
		ID: id, CustomerType: models.AccountIndividual,
		FirstName: req.FirstName, LastName: req.LastName, PhoneNumber: req.PhoneNumber,
		Email: req.Email, Country: req.Country, QRCode: fmt.Sprintf("QR-%d", id),
	}
	s.customers[id] = d
	s.registerCar(id, models.NewCar{
		CarType: req.CarType, Make: req.CarMake, MakeText: req.CarMakeText, Model: req.CarModel,
		ModelText: req.CarModelText, PlateNumber: req.PlateNumber, Year: req.Year, Color: req.Color,
	})
	out := *d
	out.Cars = s.cars[id]
	c.JSON(http.StatusCreated, out)
}

func (s *Server) onboardCorporate(c *gin.Context) {
	var req models.CorporateOnboarding
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	for _, car := range req.Cars {
		if s.plateTaken(car.PlateNumber) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Plate number already exists"})
			return
		}
	}
	id := s.id()
	d := &models.CustomerDetail{
		ID: id, CustomerType: models.AccountCorporate, IsCorporate: true,
		CompanyName: req.CompanyName, PhoneNumber: req.PhoneNumber, TINNumber: req.TINNumber,
		QRCode: fmt.Sprintf("QR-%d", id),
	}
	s.customers[id] = d
	for _, car := range req.Cars {
		s.registerCar(id, models.NewCar{
			CarType: car.CarType, Make: car.Make, MakeText: car.MakeText, Model: car.Model,
			ModelText: car.ModelText, PlateNumber: car.PlateNumber, Year: car.Year, Color: car.Color,
		})
	}
	out := *d
	out.Cars = s.cars[id]
	c.JSON(http.StatusCreated, out)
}

func (s *Server) addCar(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if _, found := s.customers[id]; !found {
		notFound(c)
		return
	}
	var req models.NewCar
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if s.plateTaken(req.PlateNumber) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Plate number already exists"})
		return
	}
	c.JSON(http.StatusCreated, s.registerCar(id, req))
}

func (s *Server) listMakes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": s.makes})
}

func (s *Server) listModels(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	list := s.carModels[id]
	if list == nil {
		list = []models.CarModel{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"results": s.services})
}

func (s *Server) listStaff(c *gin.Context) {
	c.JSON(http.StatusOK, s.staff)
}

func (s *Server) listJobs(c *gin.Context) {
	status := models.JobStatus(c.Query("status"))
	customer, _ := strconv.ParseInt(c.Query("customer"), 10, 64)
	out := []models.Job{}
	for _, job := range s.jobs {
		if status != "" && job.Status != status {
			continue
		}
		if customer != 0 && job.Customer.ID != customer {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	c.JSON(http.StatusOK, gin.H{"count": len(out), "results": out})
}

func (s *Server) service(id int64) (models.Service, bool) {
	for _, svc := range s.services {
		if svc.ID == id {
			return svc, true
		}
	}
	return models.Service{}, false
}

func (s *Server) createJob(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	d, found := s.customers[req.CustomerID]
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown customer"})
		return
	}
	var car *models.Car
	for i := range s.cars[req.CustomerID] {
		if s.cars[req.CustomerID][i].ID == req.CarID {
			car = &s.cars[req.CustomerID][i]
		}
	}
	if car == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Car does not belong to customer"})
		return
	}
	job := &models.Job{
		ID:        s.id(),
		Customer:  summary(d),
		Car:       *car,
		Status:    models.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	for _, sid := range req.ServiceIDs {
		svc, ok := s.service(sid)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown service"})
			return
		}
		job.Items = append(job.Items, models.JobItem{ID: s.id(), Job: job.ID, Service: svc, Price: svc.Price})
	}
	s.jobs[job.ID] = job
	c.JSON(http.StatusCreated, job)
}

func (s *Server) job(c *gin.Context) (*models.Job, bool) {
	id, ok := idParam(c)
	if !ok {
		return nil, false
	}
	job, found := s.jobs[id]
	if !found {
		notFound(c)
		return nil, false
	}
	return job, true
}

func (s *Server) getJob(c *gin.Context) {
	if job, ok := s.job(c); ok {
		c.JSON(http.StatusOK, job)
	}
}

func (s *Server) patchJob(c *gin.Context) {
	job, ok := s.job(c)
	if !ok {
		return
	}
	var patch models.JobPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	job.Status = patch.Status
	if patch.PaymentMethod != "" {
		job.PaymentMethod = patch.PaymentMethod
		job.TransactionReference = patch.TransactionReference
	}
	if patch.Status == models.JobStatusCompleted || patch.Status == models.JobStatusPaid {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	if patch.Status == models.JobStatusQC && s.checklists[job.ID] == nil {
		s.checklists[job.ID] = []models.QCChecklistEntry{
			{ID: s.id(), ItemName: "Exterior spotless"},
			{ID: s.id(), ItemName: "Interior vacuumed"},
		}
	}
	c.JSON(http.StatusOK, job)
}

type addItemBody struct {
	ServiceID int64 `json:"service_id"`
}

func (s *Server) addItem(c *gin.Context) {
	job, ok := s.job(c)
	if !ok {
		return
	}
	var body addItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	svc, found := s.service(body.ServiceID)
	if !found {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown service"})
		return
	}
	item := models.JobItem{ID: s.id(), Job: job.ID, Service: svc, Price: svc.Price}
	job.Items = append(job.Items, item)
	c.JSON(http.StatusCreated, item)
}

func (s *Server) getChecklist(c *gin.Context) {
	job, ok := s.job(c)
	if !ok {
		return
	}
	list := s.checklists[job.ID]
	if list == nil {
		list = []models.QCChecklistEntry{}
	}
	c.JSON(http.StatusOK, list)
}

type checklistBody struct {
	Updates []models.QCChecklistUpdate `json:"updates"`
}

func (s *Server) updateChecklist(c *gin.Context) {
	job, ok := s.job(c)
	if !ok {
		return
	}
	var body checklistBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	list := s.checklists[job.ID]
	for _, u := range body.Updates {
		for i := range list {
			if list[i].ID != u.ID {
				continue
			}
			if u.Checked != nil {
				list[i].Checked = *u.Checked
			}
			if u.Notes != nil {
				list[i].Notes = *u.Notes
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(body.Updates)})
}

func (s *Server) findTask(id int64) *models.JobTask {
	for _, job := range s.jobs {
		if _, task, ok := job.Task(id); ok {
			return task
		}
	}
	return nil
}

func (s *Server) createTask(c *gin.Context) {
	var req models.NewTask
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	for _, job := range s.jobs {
		item, ok := job.Item(req.JobItem)
		if !ok {
			continue
		}
		task := models.JobTask{ID: s.id(), JobItem: item.ID, StaffID: req.StaffID, TaskName: req.TaskName, Status: req.Status}
		for i := range s.staff {
			if s.staff[i].ID == req.StaffID {
				staff := s.staff[i]
				task.Staff = &staff
			}
		}
		item.Tasks = append(item.Tasks, task)
		c.JSON(http.StatusCreated, task)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown job item"})
}

func (s *Server) startTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task := s.findTask(id)
	if task == nil {
		notFound(c)
		return
	}
	now := time.Now().UTC()
	task.Status = models.TaskStatusInProgress
	task.StartTime = &now
	c.JSON(http.StatusOK, task)
}

func (s *Server) completeTask(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	task := s.findTask(id)
	if task == nil {
		notFound(c)
		return
	}
	now := time.Now().UTC()
	task.Status = models.TaskStatusDone
	task.EndTime = &now
	c.JSON(http.StatusOK, task)
}
